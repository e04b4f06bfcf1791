package loam

// TemplateMetadata is the frontmatter of a template document.
// The document body becomes the template description.
type TemplateMetadata struct {
	ID    string `json:"id" mapstructure:"id"`
	Query string `json:"query" mapstructure:"query"`
	Title string `json:"title" mapstructure:"title"`
	Link  string `json:"link" mapstructure:"link"`
}
