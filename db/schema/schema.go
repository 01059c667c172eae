// Declarations of the schema objects migrations produce, used to verify a live database matches them.
package schema

import (
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

type Column struct {
	// data_type from information_schema, or the type name for enums.
	Type string
	// character_maximum_length, 0 when unbounded.
	MaxLength int
	Nullable  bool
}

func (c Column) String() string {
	var b strings.Builder
	b.WriteString(c.Type)
	if c.MaxLength > 0 {
		fmt.Fprintf(&b, "(%d)", c.MaxLength)
	}
	if c.Nullable {
		b.WriteString(" null")
	} else {
		b.WriteString(" not null")
	}
	return b.String()
}

type Index struct {
	Columns []string
	Unique  bool
}

func (i Index) String() string {
	unique := ""
	if i.Unique {
		unique = "unique "
	}
	return fmt.Sprintf("%s(%s)", unique, strings.Join(i.Columns, ", "))
}

type Table struct {
	Name string
	// Revision that creates the table.
	CreatedBy string
	Columns   *orderedmap.OrderedMap[string, Column]
	// Constraint name to information_schema constraint_type. Not null checks are left out.
	Constraints map[string]string
	Indexes     map[string]Index
}

type Enum struct {
	Name      string
	CreatedBy string
	Values    []string
}

type ColumnDef struct {
	Name   string
	Column Column
}

func NewColumns(defs ...ColumnDef) *orderedmap.OrderedMap[string, Column] {
	columns := orderedmap.New[string, Column]()
	for _, def := range defs {
		columns.Set(def.Name, def.Column)
	}
	return columns
}

func notNull(name string, typ string) ColumnDef {
	return ColumnDef{Name: name, Column: Column{Type: typ, MaxLength: 0, Nullable: false}}
}

func varchar(name string, maxLength int) ColumnDef {
	return ColumnDef{Name: name, Column: Column{Type: "character varying", MaxLength: maxLength, Nullable: false}}
}

const timestamp = "timestamp without time zone"

var AdminMessagesTable = Table{
	Name:      "adminmessages",
	CreatedBy: "315675882512",
	Columns: NewColumns(
		notNull("id", "integer"),
		notNull("uuid", "uuid"),
		varchar("title", 255),
		ColumnDef{Name: "text", Column: Column{Type: "text", MaxLength: 0, Nullable: true}},
		notNull("active_start", timestamp),
		notNull("active_stop", timestamp),
		notNull("enabled", "boolean"),
	),
	Constraints: map[string]string{
		"adminmessages_pkey": "PRIMARY KEY",
	},
	Indexes: map[string]Index{
		"adminmessages_pkey":    {Columns: []string{"id"}, Unique: true},
		"ix_adminmessages_id":   {Columns: []string{"id"}, Unique: false},
		"ix_adminmessages_uuid": {Columns: []string{"uuid"}, Unique: true},
	},
}

var UserTable = Table{
	Name:      "user",
	CreatedBy: "850ccab0221d",
	Columns: NewColumns(
		notNull("id", "uuid"),
		varchar("email", 320),
		varchar("hashed_password", 1024),
		notNull("is_active", "boolean"),
		notNull("is_superuser", "boolean"),
		notNull("is_verified", "boolean"),
	),
	Constraints: map[string]string{
		"user_pkey": "PRIMARY KEY",
	},
	Indexes: map[string]Index{
		"user_pkey":     {Columns: []string{"id"}, Unique: true},
		"ix_user_email": {Columns: []string{"email"}, Unique: true},
	},
}

var CommentsTable = Table{
	Name:      "comments",
	CreatedBy: "21dd979edd2b",
	Columns: NewColumns(
		notNull("id", "uuid"),
		notNull("created", timestamp),
		notNull("updated", timestamp),
		notNull("user", "uuid"),
		notNull("obj_type", "commenttypes"),
		varchar("obj_id", 255),
		notNull("comment", "text"),
		notNull("public", "boolean"),
	),
	Constraints: map[string]string{
		"comments_pkey":      "PRIMARY KEY",
		"comments_user_fkey": "FOREIGN KEY",
		"uq_comment":         "UNIQUE",
	},
	Indexes: map[string]Index{
		"comments_pkey":  {Columns: []string{"id"}, Unique: true},
		"uq_comment":     {Columns: []string{"user", "obj_type", "obj_id"}, Unique: true},
		"ix_comments_id": {Columns: []string{"id"}, Unique: false},
	},
}

var CommentTypesEnum = Enum{
	Name:      "commenttypes",
	CreatedBy: "21dd979edd2b",
	Values:    []string{"seqvar", "strucvar", "gene"},
}

var Tables = []Table{AdminMessagesTable, UserTable, CommentsTable}
var Enums = []Enum{CommentTypesEnum}
