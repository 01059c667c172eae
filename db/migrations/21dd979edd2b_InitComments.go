package migrations

type InitComments struct{}

func init() {
	registerMigration(&InitComments{})
}

func (m *InitComments) Revision() string {
	return "21dd979edd2b"
}

func (m *InitComments) DownRevision() string {
	return "850ccab0221d"
}

func (m *InitComments) Message() string {
	return "init comments"
}

func (m *InitComments) Up(tx *Tx) error {
	if err := tx.CreateEnum("commenttypes", "seqvar", "strucvar", "gene"); err != nil {
		return err
	}
	err := tx.Exec(`
		create table comments (
			id uuid not null,
			created timestamp without time zone not null,
			updated timestamp without time zone not null,
			"user" uuid not null,
			obj_type commenttypes not null,
			obj_id varchar(255) not null,
			comment text not null,
			public boolean not null,
			primary key (id),
			foreign key ("user") references "user" (id) on delete cascade,
			constraint uq_comment unique ("user", obj_type, obj_id)
		)
	`)
	if err != nil {
		return err
	}
	return tx.CreateIndex("ix_comments_id", "comments", []string{"id"}, false)
}

// Down leaves commenttypes in place and fails if another table still uses it.
func (m *InitComments) Down(tx *Tx) error {
	if err := tx.DropIndex("ix_comments_id"); err != nil {
		return err
	}
	if err := tx.DropTable("comments"); err != nil {
		return err
	}
	return tx.DropEnum("commenttypes")
}
