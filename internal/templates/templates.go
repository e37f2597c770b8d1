// Package templates embeds the handlebars templates rendered for remote
// job scaffolding: the sbatch submission script and the job_info.json
// metadata file that sync discovery reads back.
package templates

import (
	"embed"

	"github.com/aymerick/raymond"
)

//go:embed scripts/*.hbs
var Scripts embed.FS

const (
	SubmitScriptPath = "scripts/submit_job.sh.hbs"
	JobInfoPath      = "scripts/job_info.json.hbs"
)

// Render parses the embedded template at path and executes it with ctx.
func Render(path string, ctx map[string]string) (string, error) {
	raw, err := Scripts.ReadFile(path)
	if err != nil {
		return "", err
	}

	tpl, err := raymond.Parse(string(raw))
	if err != nil {
		return "", err
	}

	return tpl.Exec(ctx)
}
