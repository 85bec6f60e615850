package version

import "fmt"

// Заполняются через -ldflags "-X github.com/vladislavdragonenkov/shop/internal/version.version=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info возвращает версию, коммит и дату сборки.
func Info() (v, c, d string) { return version, commit, date }

// GetVersion возвращает версию сборки.
func GetVersion() string { return version }

// GetCommit возвращает хеш коммита.
func GetCommit() string { return commit }

// GetDate возвращает дату сборки.
func GetDate() string { return date }

// String возвращает строку версии для логов.
func String() string {
	return fmt.Sprintf("shop-api version=%s commit=%s date=%s", version, commit, date)
}
