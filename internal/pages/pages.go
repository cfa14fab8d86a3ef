// Package pages holds the static copy of each dashboard page: headings, figure captions,
// narrative sections written in markdown and the open data references.
package pages

import (
	"embed"
	"html/template"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"heartprev/internal/errors"
)

//go:embed content
var content embed.FS

// Page slugs
const (
	Home         = "home"
	Map          = "map"
	TimeSeries   = "timeseries"
	Correlations = "correlations"
)

// ReferenceGroup lists the open data links of one publisher
type ReferenceGroup struct {
	Publisher string
	Links     []string
}

// Page is the static content of one dashboard page
type Page struct {
	Slug     string
	Path     string
	NavTitle string
	Heading  string
	// Sections are rendered narrative blocks keyed by name, e.g. "intro"
	Sections   map[string]template.HTML
	Captions   map[string]string
	References []ReferenceGroup
}

// Section returns a rendered narrative block, empty when the page has none by that name
func (p *Page) Section(name string) template.HTML {
	return p.Sections[name]
}

const (
	phsPrevalence  = "https://publichealthscotland.scot/publications/general-practice-disease-prevalence-data-visualisation/general-practice-disease-prevalence-visualisation-8-july-2025/"
	phsMethodology = "https://publichealthscotland.scot/media/34174/diseaseprevalence_methodology_and_metadata_2025-for-publication.pdf"
	phsBMI         = "https://www.opendata.nhs.scot/dataset/01fe4008-23f8-4b34-b8f6-c38699a2f00d/resource/2cb9d907-7149-4bbd-904a-174f15344585/download/od_p1bmi_hb_epi.csv"
	nrsPopulation  = "https://www.nrscotland.gov.uk/publications/population-estimates-time-series-data/"
	govSurvey2023  = "https://www.gov.scot/publications/scottish-surveys-core-questions-2023/"
	govSurvey2022  = "https://www.gov.scot/publications/scottish-surveys-core-questions-2022/"
)

func openDataReferences(surveys ...string) []ReferenceGroup {
	return []ReferenceGroup{
		{Publisher: "Public Health Scotland", Links: []string{phsPrevalence, phsMethodology, phsBMI}},
		{Publisher: "National Records of Scotland", Links: []string{nrsPopulation}},
		{Publisher: "Scottish Government", Links: surveys},
	}
}

var definitions = []Page{
	{
		Slug:     Home,
		Path:     "/",
		NavTitle: "Home",
		Heading:  "Home page",
	},
	{
		Slug:     Map,
		Path:     "/map",
		NavTitle: "Map",
		Heading:  "Heart Disease Related Prevalence in Scotland's Regional Health Boards 2021/22 to 2024/25",
		Captions: map[string]string{
			"map":   "Figure 1: Map of the latest heart-related disease open health data for the Scottish Health Board Regions",
			"table": "Table 1: Latest open heart disease related data for the Scottish Health Board Regions with the highest 50% of column values highlighted in dark pink",
		},
		References: openDataReferences(govSurvey2023),
	},
	{
		Slug:     TimeSeries,
		Path:     "/timeseries",
		NavTitle: "Time series",
		Heading:  "Prevalence of Heart Disease Related factors in Scottish Health Boards 2022-2025",
		Captions: map[string]string{
			"grid": "Table 1: Prevalence of Heart Disease related factors data for the Scottish Health Board Regions 2022-2025",
		},
		References: openDataReferences(govSurvey2023, govSurvey2022),
	},
	{
		Slug:       Correlations,
		Path:       "/correlations",
		NavTitle:   "Correlations",
		Heading:    "Prevalence of Heart Disease Related factors in Scottish Health Boards 2022-2025",
		References: openDataReferences(govSurvey2023, govSurvey2022),
	},
}

// Registry is the set of pages with their narrative rendered to HTML
type Registry struct {
	pages map[string]*Page
	order []string
}

// Load renders the embedded markdown of every page
func Load() (*Registry, error) {
	return load(content)
}

func load(fsys fs.FS) (*Registry, error) {
	r := &Registry{pages: make(map[string]*Page, len(definitions))}
	for _, def := range definitions {
		page := def
		sections, err := renderSections(fsys, page.Slug)
		if err != nil {
			return nil, err
		}
		page.Sections = sections
		if page.Captions == nil {
			page.Captions = map[string]string{}
		}
		r.pages[page.Slug] = &page
		r.order = append(r.order, page.Slug)
	}
	return r, nil
}

func renderSections(fsys fs.FS, slug string) (map[string]template.HTML, error) {
	dir := path.Join("content", slug)
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read narrative for page %s", slug)
	}

	sections := make(map[string]template.HTML, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		raw, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", e.Name())
		}
		sections[strings.TrimSuffix(e.Name(), ".md")] = Render(raw)
	}
	return sections, nil
}

// Render converts markdown to HTML. Links open in a new tab.
func Render(md []byte) template.HTML {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse(md)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	return template.HTML(markdown.Render(doc, renderer))
}

// Get returns a page by slug
func (r *Registry) Get(slug string) (*Page, error) {
	p, ok := r.pages[slug]
	if !ok {
		return nil, errors.NotFound("page " + slug)
	}
	return p, nil
}

// Nav returns the pages in navigation order
func (r *Registry) Nav() []*Page {
	out := make([]*Page, 0, len(r.order))
	for _, slug := range r.order {
		out = append(out, r.pages[slug])
	}
	return out
}

// SectionNames lists the narrative blocks of a page, sorted
func (p *Page) SectionNames() []string {
	names := make([]string, 0, len(p.Sections))
	for n := range p.Sections {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
