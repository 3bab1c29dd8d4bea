package schema

// CoreWorkTable represents the 'core.work' table
type CoreWorkTable struct {
	Table                string
	ID                   string
	Slug                 string
	Title                string
	LastContentUpdatedAt string
	CreatedAt            string
	UpdatedAt            string
}

// CoreWork is the schema definition for core.work
var CoreWork = CoreWorkTable{
	Table:                "core.work",
	ID:                   "id",
	Slug:                 "slug",
	Title:                "title",
	LastContentUpdatedAt: "lastcontentupdatedat",
	CreatedAt:            "createdat",
	UpdatedAt:            "updatedat",
}

func (t CoreWorkTable) Columns() []string {
	return []string{t.ID, t.Slug, t.Title, t.LastContentUpdatedAt, t.CreatedAt, t.UpdatedAt}
}
