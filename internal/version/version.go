package version

import "fmt"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// String возвращает строку версии, заполняемую через -ldflags при сборке.
func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}

// Short возвращает только номер версии для health-ответов.
func Short() string {
	return version
}
