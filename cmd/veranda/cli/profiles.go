package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/veranda-erp/veranda-erp/internal/posimport"
)

// ProfilesCLI bundles vendor profile maintenance helpers.
type ProfilesCLI struct{}

// NewProfilesCLI constructs the profiles CLI.
func NewProfilesCLI() *ProfilesCLI {
	return &ProfilesCLI{}
}

// ProfileValidateOptions defines available flags for the profiles validate
// command.
type ProfileValidateOptions struct {
	Path       string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// ProfileValidateSummary describes the JSON response for profiles validate.
type ProfileValidateSummary struct {
	OK       bool     `json:"ok"`
	Vendor   string   `json:"vendor"`
	Format   string   `json:"format"`
	Problems []string `json:"problems"`
	Mapped   []string `json:"mapped_fields"`
}

// ValidateCommand checks a vendor profile JSON file against the importer's
// requirements for both header and line-item files, and prints the outcome.
func (c *ProfilesCLI) ValidateCommand(opts ProfileValidateOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if strings.TrimSpace(opts.Path) == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "profiles validate: --file is required")
		return 1
	}
	data, err := os.ReadFile(opts.Path)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "profiles validate: %v\n", err)
		return 1
	}
	var profile posimport.VendorProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "profiles validate: decode json: %v\n", err)
		return 1
	}

	var problems []string
	for _, kind := range []posimport.ImportKind{posimport.KindHeaders, posimport.KindItems} {
		if err := profile.Validate(kind); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", kind, err))
		}
	}
	mapped := make([]string, 0, len(profile.Columns))
	for field, caption := range profile.Columns {
		if caption != "" {
			mapped = append(mapped, field)
		}
	}
	sort.Strings(mapped)

	if opts.JSONOutput {
		summary := ProfileValidateSummary{
			OK:       len(problems) == 0,
			Vendor:   profile.Vendor,
			Format:   string(profile.Format),
			Problems: problems,
			Mapped:   mapped,
		}
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "profiles validate: encode json: %v\n", err)
			return 1
		}
	} else {
		renderProfileHuman(opts.Stdout, profile, problems, mapped)
	}
	if len(problems) > 0 {
		return 10
	}
	return 0
}

func renderProfileHuman(out io.Writer, profile posimport.VendorProfile, problems, mapped []string) {
	_, _ = fmt.Fprintf(out, "Profile %q (%s)\n", profile.Vendor, profile.Format)
	if len(problems) == 0 {
		_, _ = fmt.Fprintln(out, "Profile is valid for header and line-item imports.")
	} else {
		_, _ = fmt.Fprintf(out, "%d problem(s) detected:\n", len(problems))
		for _, problem := range problems {
			_, _ = fmt.Fprintf(out, " - %s\n", problem)
		}
	}
	if len(mapped) > 0 {
		_, _ = fmt.Fprintf(out, "Mapped fields: %s\n", strings.Join(mapped, ", "))
	}
}
