package schema

// CoreChapterTable represents the 'core.chapter' table
type CoreChapterTable struct {
	Table         string
	ID            string
	WorkID        string
	Title         string
	ChapterNumber string
	SortOrder     string
	ViewCount     string
	CreatedAt     string
	UpdatedAt     string

	// Named unique constraints, used to tell collisions apart.
	UniqueNumber string
	UniqueOrder  string
}

// CoreChapter is the schema definition for core.chapter
var CoreChapter = CoreChapterTable{
	Table:         "core.chapter",
	ID:            "id",
	WorkID:        "workid",
	Title:         "title",
	ChapterNumber: "chapternumber",
	SortOrder:     "sortorder",
	ViewCount:     "viewcount",
	CreatedAt:     "createdat",
	UpdatedAt:     "updatedat",

	UniqueNumber: "chapter_workid_chapternumber_key",
	UniqueOrder:  "chapter_workid_sortorder_key",
}

func (t CoreChapterTable) Columns() []string {
	return []string{
		t.ID, t.WorkID, t.Title, t.ChapterNumber, t.SortOrder, t.ViewCount, t.CreatedAt, t.UpdatedAt,
	}
}
