package conflict

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Lister produces one line per running process ("comm args").
type Lister interface {
	List() ([]string, error)
}

// ListerFunc adapts a function to Lister.
type ListerFunc func() ([]string, error)

// List calls f().
func (f ListerFunc) List() ([]string, error) { return f() }

// DefaultLister reads procfs and falls back to ps.
func DefaultLister() Lister {
	return chain{&Procfs{Root: "/proc"}, &Ps{}}
}

type chain []Lister

func (c chain) List() ([]string, error) {
	var errs []error
	for _, l := range c {
		lines, err := l.List()
		if err == nil {
			return lines, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

// Procfs reads <Root>/<pid>/comm and cmdline. Linux-only at runtime.
type Procfs struct {
	Root string
}

// List implements Lister.
func (p *Procfs) List() ([]string, error) {
	entries, err := os.ReadDir(p.Root)
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := strconv.Atoi(e.Name()); err != nil {
			continue
		}
		dir := filepath.Join(p.Root, e.Name())
		comm := readComm(dir)
		args := readCmdline(dir)
		if comm == "" && args == "" {
			// Process may have exited between ReadDir and read.
			continue
		}
		lines = append(lines, strings.TrimSpace(comm+" "+args))
	}
	return lines, nil
}

func readComm(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "comm"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// readCmdline returns the NUL-separated cmdline as a space-separated string.
func readCmdline(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "cmdline"))
	if err != nil {
		return ""
	}
	var parts []string
	for _, p := range strings.Split(string(data), "\x00") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Ps shells out to `ps -eo comm,args`.
type Ps struct{}

// List implements Lister.
func (Ps) List() ([]string, error) {
	out, err := exec.Command("ps", "-eo", "comm,args").Output()
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, l := range bytes.Split(out, []byte("\n")) {
		if s := strings.TrimSpace(string(l)); s != "" {
			lines = append(lines, s)
		}
	}
	return lines, nil
}
