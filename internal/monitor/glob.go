package monitor

import "github.com/gobwas/glob"

// compiledGlob holds the two glob variants a triggering_path is evaluated
// against: recursive (a '*' crosses '/') and direct (a '*' stops at '/').
type compiledGlob struct {
	recursive glob.Glob
	direct    glob.Glob
}

func compileGlob(pattern string) (*compiledGlob, error) {
	recursive, err := glob.Compile(pattern)
	if err != nil {
		return nil, err
	}
	direct, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, err
	}
	return &compiledGlob{recursive: recursive, direct: direct}, nil
}

// match reports whether relPath satisfies either the recursive or the
// direct variant of the compiled glob.
func (c *compiledGlob) match(relPath string) bool {
	return c.recursive.Match(relPath) || c.direct.Match(relPath)
}
