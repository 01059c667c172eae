package migrations

type AdminMessages struct{}

func init() {
	registerMigration(&AdminMessages{})
}

func (m *AdminMessages) Revision() string {
	return "315675882512"
}

func (m *AdminMessages) DownRevision() string {
	return ""
}

func (m *AdminMessages) Message() string {
	return "empty message"
}

func (m *AdminMessages) Up(tx *Tx) error {
	err := tx.Exec(`
		create table adminmessages (
			id serial not null,
			uuid uuid not null,
			title varchar(255) not null,
			text text,
			active_start timestamp without time zone not null,
			active_stop timestamp without time zone not null,
			enabled boolean not null,
			primary key (id)
		)
	`)
	if err != nil {
		return err
	}
	if err := tx.CreateIndex("ix_adminmessages_id", "adminmessages", []string{"id"}, false); err != nil {
		return err
	}
	return tx.CreateIndex("ix_adminmessages_uuid", "adminmessages", []string{"uuid"}, true)
}

func (m *AdminMessages) Down(tx *Tx) error {
	if err := tx.DropIndex("ix_adminmessages_uuid"); err != nil {
		return err
	}
	if err := tx.DropIndex("ix_adminmessages_id"); err != nil {
		return err
	}
	return tx.DropTable("adminmessages")
}
