package appfs

import "embed"

// FS holds the SQL migrations, the email templates and the password policy assets shipped with the binaries.
//go:embed migrations/*.sql templates/email/* passwords/*.txt
var FS embed.FS

const (
	MigrationsDir       = "migrations"
	EmailTemplatesDir   = "templates/email"
	CommonPasswordsFile = "passwords/common-passwords.txt"
)
