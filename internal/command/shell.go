package command

import "strings"

// Escape quotes s as a single POSIX shell word. Embedded single quotes are
// closed, escaped and reopened, so nothing inside is ever interpreted.
func Escape(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// BuildLine renders spec as one shell command line. The executable is left
// unquoted so remote shells may resolve ~ or PATH lookups in it; every
// argument and the working directory are escaped.
func BuildLine(spec Spec) string {
	var b strings.Builder
	if spec.Dir != "" {
		b.WriteString("cd ")
		b.WriteString(Escape(spec.Dir))
		b.WriteString(" && ")
	}
	b.WriteString(spec.Executable)
	for _, arg := range spec.Args {
		b.WriteByte(' ')
		b.WriteString(Escape(arg))
	}
	return b.String()
}
