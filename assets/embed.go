package assets

import (
	"bufio"
	"embed"
	"io/fs"
	"strings"
)

//go:embed words_fr.txt words_en.txt tournaments.json sql/*.sql
var FS embed.FS

func readLines(name string) ([]string, error) {
	f, err := FS.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		out = append(out, strings.ToUpper(s))
	}
	return out, sc.Err()
}

// Words returns the embedded solution words for a language code ("FR"/"EN").
func Words(lang string) ([]string, error) {
	return readLines("words_" + strings.ToLower(lang) + ".txt")
}

// Tournaments returns the raw tournament catalogue.
func Tournaments() ([]byte, error) {
	return FS.ReadFile("tournaments.json")
}

// Migrations exposes the embedded SQL migrations rooted at sql/.
func Migrations() fs.FS {
	sub, _ := fs.Sub(FS, "sql")
	return sub
}
