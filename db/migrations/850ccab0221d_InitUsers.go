package migrations

// InitUsers creates the authentication table comments point to.
type InitUsers struct{}

func init() {
	registerMigration(&InitUsers{})
}

func (m *InitUsers) Revision() string {
	return "850ccab0221d"
}

func (m *InitUsers) DownRevision() string {
	return "315675882512"
}

func (m *InitUsers) Message() string {
	return "init users"
}

func (m *InitUsers) Up(tx *Tx) error {
	err := tx.Exec(`
		create table "user" (
			id uuid not null,
			email varchar(320) not null,
			hashed_password varchar(1024) not null,
			is_active boolean not null,
			is_superuser boolean not null,
			is_verified boolean not null,
			primary key (id)
		)
	`)
	if err != nil {
		return err
	}
	return tx.CreateIndex("ix_user_email", "user", []string{"email"}, true)
}

func (m *InitUsers) Down(tx *Tx) error {
	if err := tx.DropIndex("ix_user_email"); err != nil {
		return err
	}
	return tx.DropTable("user")
}
