// Package prompt builds the system instruction sent with every completion.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// maxContextFileSize bounds each appended context file
const maxContextFileSize = 10000

// Spark returns the base persona instruction
func Spark() string {
	return sparkPrompt
}

// SystemInstruction returns the persona plus the content of any extra
// context files. Paths ending in "/" are walked recursively; relative paths
// resolve against workDir.
func SystemInstruction(workDir string, contextPaths []string) string {
	extra := processContextPaths(workDir, contextPaths)
	if extra == "" {
		return sparkPrompt
	}
	return fmt.Sprintf("%s\n\n# Editorial Context\nFollow the house guidance below in addition to the rules above.\n%s", sparkPrompt, extra)
}

func processContextPaths(workDir string, paths []string) string {
	if len(paths) == 0 {
		return ""
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		seen    = make(map[string]bool)
		results []string
	)
	add := func(path string) {
		key := strings.ToLower(path)
		mu.Lock()
		if seen[key] {
			mu.Unlock()
			return
		}
		seen[key] = true
		mu.Unlock()

		if result := processFile(path); result != "" {
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		}
	}

	for _, p := range paths {
		full := p
		if !filepath.IsAbs(full) {
			full = filepath.Join(workDir, p)
		}
		wg.Add(1)
		go func(p, full string) {
			defer wg.Done()
			if !strings.HasSuffix(p, "/") {
				add(full)
				return
			}
			_ = filepath.WalkDir(full, func(path string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() {
					add(path)
				}
				return nil
			})
		}(p, full)
	}
	wg.Wait()

	// goroutines finish in any order
	sort.Strings(results)
	return strings.Join(results, "\n")
}

func processFile(filePath string) string {
	content, err := os.ReadFile(filePath)
	if err != nil || len(content) == 0 {
		return ""
	}
	if len(content) > maxContextFileSize {
		return fmt.Sprintf("# From: %s (truncated)\n%s\n... [file truncated]", filePath, string(content[:maxContextFileSize]))
	}
	return fmt.Sprintf("# From: %s\n%s", filePath, string(content))
}
