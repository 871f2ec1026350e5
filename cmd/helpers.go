package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/lamap-cli/internal/project"
	"github.com/KaramelBytes/lamap-cli/internal/sample"
	"github.com/KaramelBytes/lamap-cli/internal/utils"
)

// input is a map resolved from a file path or a project sample reference.
type input struct {
	Path    string
	Project *project.Project
	Ref     *project.SampleRef
}

// resolveInput treats arg as a sample name/ID when projName is set and the
// project knows it, otherwise as a file path.
func resolveInput(arg, projName string) (*input, error) {
	if projName == "" {
		if _, err := os.Stat(arg); err != nil {
			return nil, fmt.Errorf("input map: %w", err)
		}
		return &input{Path: arg}, nil
	}
	dir, err := resolveProjectDirByName(projName)
	if err != nil {
		return nil, err
	}
	p, err := project.LoadProject(dir)
	if err != nil {
		return nil, err
	}
	in := &input{Project: p}
	if ref, err := p.FindSample(arg); err == nil {
		in.Ref = ref
		in.Path = ref.Path
		return in, nil
	}
	if _, err := os.Stat(arg); err != nil {
		return nil, fmt.Errorf("%q is neither a sample of project %s nor a file", arg, p.Name)
	}
	in.Path = arg
	return in, nil
}

// record appends a processing step to the project sample, if any, and saves.
func (in *input) record(step project.Step, s *sample.Sample) error {
	if in.Project == nil || in.Ref == nil {
		return nil
	}
	if err := in.Project.RecordStep(in.Ref.ID, step, s); err != nil {
		return err
	}
	return in.Project.Save()
}

// options returns the load options for this input. Project samples carry
// the column attributes recorded by earlier commands.
func (in *input) options(delim string) (sample.LoadOptions, error) {
	opt, err := loadOptions(delim, in.Project)
	if err != nil {
		return opt, err
	}
	if in.Ref != nil {
		opt.Attrs = in.Ref.Attrs
	}
	return opt, nil
}

// loadOptions builds sample load options from config and an optional
// --delimiter value. Project overrides win over global config.
func loadOptions(delim string, p *project.Project) (sample.LoadOptions, error) {
	var opt sample.LoadOptions
	if cfg != nil {
		opt.XCol, opt.YCol = cfg.XColumn, cfg.YColumn
		if delim == "" {
			delim = cfg.Delimiter
		}
	}
	if p != nil && p.Config != nil {
		if p.Config.XColumn != "" {
			opt.XCol = p.Config.XColumn
		}
		if p.Config.YColumn != "" {
			opt.YCol = p.Config.YColumn
		}
	}
	switch delim {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", delim)
	}
	return opt, nil
}

// defaultOutput returns <dir>/<base>_<suffix>.csv next to the input.
func defaultOutput(path, suffix string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(path), stem+"_"+suffix+".csv")
}

// expandGlobs expands shell-style patterns, keeping literal paths that exist.
func expandGlobs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}

// uniquePath appends __2, __3, ... before the extension until path is unused.
func uniquePath(dir, stem, ext string) string {
	out := filepath.Join(dir, stem+ext)
	if _, err := os.Stat(out); err != nil {
		return out
	}
	for idx := 2; ; idx++ {
		cand := filepath.Join(dir, fmt.Sprintf("%s__%d%s", stem, idx, ext))
		if _, err := os.Stat(cand); os.IsNotExist(err) {
			return cand
		}
	}
}

// currentProjectDir finds a project by walking up from the working directory.
func currentProjectDir() (string, error) {
	return utils.FindProjectRoot("")
}
