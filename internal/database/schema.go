package database

import (
    "context"
    "database/sql"
    "fmt"
    "strings"
)

// Dialect selects the DDL flavour used by Migrate.  Production runs on
// MySQL; SQLite is used by the test suite.
type Dialect int

const (
    MySQL Dialect = iota
    SQLite
)

// column type tokens, expanded per dialect
var dialectTypes = map[Dialect]*strings.Replacer{
    MySQL: strings.NewReplacer(
        "@pk", "BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY",
        "@ref", "BIGINT UNSIGNED",
        "@str", "VARCHAR(255)",
        "@text", "TEXT",
        "@ts", "DATETIME(6)",
        "@bool", "TINYINT(1)",
    ),
    SQLite: strings.NewReplacer(
        "@pk", "INTEGER PRIMARY KEY AUTOINCREMENT",
        "@ref", "INTEGER",
        "@str", "TEXT",
        "@text", "TEXT",
        "@ts", "DATETIME",
        "@bool", "INTEGER",
    ),
}

type index struct {
    name string
    cols string
}

type table struct {
    name    string
    defs    []string
    indexes []index
}

// schema lists tables in dependency order.  Uniqueness constraints that
// back get-or-create (systems.name, talkgroups(system_id, dec_id),
// units(system_id, dec_id)) must stay in place: concurrent imports rely on
// them to detect races.
var schema = []table{
    {
        name: "systems",
        defs: []string{
            "id @pk",
            "name @str NOT NULL",
            "description @text NOT NULL",
            "slug @str NOT NULL",
            "created_at @ts NOT NULL",
            "updated_at @ts NOT NULL",
            "UNIQUE (name)",
            "UNIQUE (slug)",
        },
    },
    {
        name: "talkgroups",
        defs: []string{
            "id @pk",
            "system_id @ref NOT NULL",
            "dec_id BIGINT NOT NULL",
            "alpha_tag @str NOT NULL",
            "common_name @str NOT NULL",
            "description @text NOT NULL",
            "slug @str NOT NULL",
            "is_public @bool NOT NULL DEFAULT 1",
            "last_transmission @ts NULL",
            "recent_usage INT NOT NULL DEFAULT 0",
            "created_at @ts NOT NULL",
            "updated_at @ts NOT NULL",
            "UNIQUE (system_id, dec_id)",
            "UNIQUE (slug)",
            "FOREIGN KEY (system_id) REFERENCES systems(id)",
        },
        indexes: []index{{"idx_talkgroups_last_tx", "last_transmission DESC"}},
    },
    {
        name: "units",
        defs: []string{
            "id @pk",
            "system_id @ref NOT NULL",
            "dec_id BIGINT NOT NULL",
            "description @str NOT NULL",
            "unit_type CHAR(1) NOT NULL DEFAULT 'M'",
            "unit_number @str NOT NULL",
            "slug @str NOT NULL",
            "created_at @ts NOT NULL",
            "updated_at @ts NOT NULL",
            "UNIQUE (system_id, dec_id)",
            "FOREIGN KEY (system_id) REFERENCES systems(id)",
        },
        indexes: []index{{"idx_units_slug", "slug"}},
    },
    {
        name: "transmissions",
        defs: []string{
            "id @pk",
            "slug CHAR(36) NOT NULL",
            "start_datetime @ts NOT NULL",
            "end_datetime @ts NULL",
            "play_length DOUBLE NOT NULL DEFAULT 0",
            "audio_file @str NOT NULL",
            "audio_file_url_path @str NOT NULL",
            "audio_file_type @str NOT NULL",
            "has_audio @bool NOT NULL DEFAULT 1",
            "system_id @ref NOT NULL",
            "talkgroup_id @ref NOT NULL",
            "talkgroup_dec_id BIGINT NOT NULL",
            "talkgroup_name @str NOT NULL",
            "system_name @str NOT NULL",
            "units_json @text NOT NULL",
            "freq BIGINT NULL",
            "emergency @bool NOT NULL DEFAULT 0",
            "created_at @ts NOT NULL",
            "UNIQUE (slug)",
            "FOREIGN KEY (system_id) REFERENCES systems(id)",
            "FOREIGN KEY (talkgroup_id) REFERENCES talkgroups(id)",
        },
        indexes: []index{
            {"idx_tx_start", "start_datetime DESC"},
            {"idx_tx_tg_start", "talkgroup_id, start_datetime DESC"},
            {"idx_tx_system_start", "system_id, start_datetime DESC"},
            {"idx_tx_emergency_start", "emergency, start_datetime DESC"},
        },
    },
    {
        name: "transmission_units",
        defs: []string{
            "id @pk",
            "transmission_id @ref NOT NULL",
            "unit_id @ref NOT NULL",
            "ord INT NOT NULL DEFAULT 0",
            "UNIQUE (transmission_id, unit_id)",
            "FOREIGN KEY (transmission_id) REFERENCES transmissions(id) ON DELETE CASCADE",
            "FOREIGN KEY (unit_id) REFERENCES units(id)",
        },
        indexes: []index{{"idx_tx_units_unit", "unit_id"}},
    },
    {
        // plain integer references: archived rows may outlive their targets
        name: "transmission_archive",
        defs: []string{
            "id @pk",
            "original_id @ref NOT NULL",
            "slug CHAR(36) NOT NULL",
            "start_datetime @ts NOT NULL",
            "end_datetime @ts NULL",
            "play_length DOUBLE NOT NULL DEFAULT 0",
            "audio_file @str NOT NULL",
            "system_id @ref NOT NULL",
            "system_name @str NOT NULL",
            "talkgroup_id @ref NOT NULL",
            "talkgroup_dec_id BIGINT NOT NULL",
            "talkgroup_name @str NOT NULL",
            "units_json @text NOT NULL",
            "freq BIGINT NULL",
            "emergency @bool NOT NULL DEFAULT 0",
            "created_at @ts NOT NULL",
            "archived_at @ts NOT NULL",
            "UNIQUE (slug)",
        },
        indexes: []index{
            {"idx_archive_start", "start_datetime DESC"},
            {"idx_archive_tg_start", "talkgroup_id, start_datetime DESC"},
        },
    },
    {
        name: "plans",
        defs: []string{
            "id @pk",
            "name @str NOT NULL",
            "description @text NOT NULL",
            "history INT NOT NULL DEFAULT 0",
            "is_default @bool NOT NULL DEFAULT 0",
            "created_at @ts NOT NULL",
            "updated_at @ts NOT NULL",
            "UNIQUE (name)",
        },
    },
    {
        name: "talkgroup_access",
        defs: []string{
            "id @pk",
            "name @str NOT NULL",
            "description @text NOT NULL",
            "default_group @bool NOT NULL DEFAULT 0",
            "default_new_talkgroups @bool NOT NULL DEFAULT 0",
            "created_at @ts NOT NULL",
            "updated_at @ts NOT NULL",
            "UNIQUE (name)",
        },
    },
    {
        name: "talkgroup_access_members",
        defs: []string{
            "access_id @ref NOT NULL",
            "talkgroup_id @ref NOT NULL",
            "PRIMARY KEY (access_id, talkgroup_id)",
            "FOREIGN KEY (access_id) REFERENCES talkgroup_access(id) ON DELETE CASCADE",
            "FOREIGN KEY (talkgroup_id) REFERENCES talkgroups(id) ON DELETE CASCADE",
        },
    },
    {
        name: "profiles",
        defs: []string{
            "id @pk",
            "user_id @ref NOT NULL",
            "plan_id @ref NULL",
            "show_unit_ids @bool NOT NULL DEFAULT 0",
            "is_approved @bool NOT NULL DEFAULT 0",
            "created_at @ts NOT NULL",
            "updated_at @ts NOT NULL",
            "UNIQUE (user_id)",
            "FOREIGN KEY (plan_id) REFERENCES plans(id) ON DELETE SET NULL",
        },
    },
    {
        name: "profile_access",
        defs: []string{
            "profile_id @ref NOT NULL",
            "access_id @ref NOT NULL",
            "PRIMARY KEY (profile_id, access_id)",
            "FOREIGN KEY (profile_id) REFERENCES profiles(id) ON DELETE CASCADE",
            "FOREIGN KEY (access_id) REFERENCES talkgroup_access(id) ON DELETE CASCADE",
        },
    },
    {
        name: "profile_favorites",
        defs: []string{
            "profile_id @ref NOT NULL",
            "talkgroup_id @ref NOT NULL",
            "PRIMARY KEY (profile_id, talkgroup_id)",
            "FOREIGN KEY (profile_id) REFERENCES profiles(id) ON DELETE CASCADE",
            "FOREIGN KEY (talkgroup_id) REFERENCES talkgroups(id) ON DELETE CASCADE",
        },
    },
    {
        name: "scanlists",
        defs: []string{
            "id @pk",
            "created_by @ref NOT NULL",
            "name @str NOT NULL",
            "slug @str NOT NULL",
            "description @text NOT NULL",
            "public @bool NOT NULL DEFAULT 0",
            "created_at @ts NOT NULL",
            "updated_at @ts NOT NULL",
            "UNIQUE (name)",
            "UNIQUE (slug)",
        },
    },
    {
        name: "scanlist_talkgroups",
        defs: []string{
            "scanlist_id @ref NOT NULL",
            "talkgroup_id @ref NOT NULL",
            "PRIMARY KEY (scanlist_id, talkgroup_id)",
            "FOREIGN KEY (scanlist_id) REFERENCES scanlists(id) ON DELETE CASCADE",
            "FOREIGN KEY (talkgroup_id) REFERENCES talkgroups(id) ON DELETE CASCADE",
        },
        indexes: []index{{"idx_scanlist_tg", "talkgroup_id"}},
    },
    {
        name: "incidents",
        defs: []string{
            "id @pk",
            "name @str NOT NULL",
            "slug @str NOT NULL",
            "description @text NOT NULL",
            "public @bool NOT NULL DEFAULT 1",
            "created_by @ref NULL",
            "created_at @ts NOT NULL",
            "updated_at @ts NOT NULL",
            "UNIQUE (name)",
            "UNIQUE (slug)",
        },
    },
    {
        name: "incident_transmissions",
        defs: []string{
            "incident_id @ref NOT NULL",
            "transmission_id @ref NOT NULL",
            "PRIMARY KEY (incident_id, transmission_id)",
            "FOREIGN KEY (incident_id) REFERENCES incidents(id) ON DELETE CASCADE",
            "FOREIGN KEY (transmission_id) REFERENCES transmissions(id) ON DELETE CASCADE",
        },
    },
    {
        name: "transcriptions",
        defs: []string{
            "id @pk",
            "transmission_id @ref NOT NULL",
            "text @text NOT NULL",
            "is_automated @bool NOT NULL DEFAULT 0",
            "confidence DOUBLE NULL",
            "language @str NOT NULL",
            "created_by @ref NULL",
            "created_at @ts NOT NULL",
            "updated_at @ts NOT NULL",
            "UNIQUE (transmission_id)",
            "FOREIGN KEY (transmission_id) REFERENCES transmissions(id) ON DELETE CASCADE",
        },
    },
}

// Statements renders the schema as DDL for the given dialect.  MySQL gets
// its secondary indexes inline; SQLite gets separate CREATE INDEX
// statements since it has no inline index syntax.
func Statements(d Dialect) []string {
    rep := dialectTypes[d]
    var out []string
    for _, t := range schema {
        defs := make([]string, 0, len(t.defs)+len(t.indexes))
        for _, def := range t.defs {
            defs = append(defs, rep.Replace(def))
        }
        if d == MySQL {
            for _, ix := range t.indexes {
                defs = append(defs, fmt.Sprintf("INDEX %s (%s)", ix.name, ix.cols))
            }
        }
        stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)", t.name, strings.Join(defs, ",\n    "))
        if d == MySQL {
            stmt += " ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"
        }
        out = append(out, stmt)
        if d == SQLite {
            for _, ix := range t.indexes {
                out = append(out, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", ix.name, t.name, ix.cols))
            }
        }
    }
    return out
}

// Migrate creates every table that does not exist yet.  It is idempotent
// and never alters existing tables.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
    for _, stmt := range Statements(d) {
        if _, err := db.ExecContext(ctx, stmt); err != nil {
            return fmt.Errorf("migrate: %w\n%s", err, stmt)
        }
    }
    return nil
}
