package workers

import "time"

// DefaultSource is recorded on workers imported without a file name
const DefaultSource = "workers.csv"

// MaxExperience is the highest accepted experience score
const MaxExperience = 10

// Worker is one roster entry
type Worker struct {
	ID           string    `json:"id"`
	WorkspaceID  string    `json:"workspaceId"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	Technologies []string  `json:"technologies"`
	Experience   []int     `json:"experience"`
	Source       string    `json:"source"`
	ImportedAt   time.Time `json:"importedAt"`
}

// ImportedWorker summarises one imported row
type ImportedWorker struct {
	Name         string `json:"name"`
	Role         string `json:"role"`
	Technologies int    `json:"technologies"`
	Experience   int    `json:"experience"`
}

// ImportResult reports an import. Rows listed in Errors were skipped.
type ImportResult struct {
	Imported      []ImportedWorker `json:"imported"`
	Errors        []string         `json:"errors"`
	TotalImported int              `json:"totalImported"`
	TotalErrors   int              `json:"totalErrors"`
}
