package regen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/oleg121203/atlas-core/plan"
)

// PluginScanner inspects Go tool-plugin sources for structural defects: a
// declared tool type (name ending in "Tool") that lacks an Execute method
// cannot be loaded, which surfaces at runtime as "method not found".
// Parsing uses tree-sitter so broken sources still produce a diagnosis
// instead of a hard failure.
type PluginScanner struct {
	dir    string
	parser *sitter.Parser
}

// NewPluginScanner creates a scanner over a directory of Go plugin sources.
func NewPluginScanner(dir string) *PluginScanner {
	p := sitter.NewParser()
	p.SetLanguage(golang.GetLanguage())
	return &PluginScanner{
		dir:    dir,
		parser: p,
	}
}

// Detect scans every .go file in the plugin directory. The plan is not
// consulted: structural defects in plugins block any plan that needs them.
func (s *PluginScanner) Detect(ctx context.Context, _ *plan.Plan) []Issue {
	if s.dir == "" {
		return nil
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return []Issue{{
			Kind:    IssueParseFailure,
			Subject: s.dir,
			Detail:  fmt.Sprintf("read plugin directory: %s", err.Error()),
		}}
	}

	var issues []Issue
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		issues = append(issues, s.scanFile(ctx, filepath.Join(s.dir, name))...)
	}
	return issues
}

// scanFile parses one source file and reports tool types missing Execute.
func (s *PluginScanner) scanFile(ctx context.Context, path string) []Issue {
	content, err := os.ReadFile(path)
	if err != nil {
		return []Issue{{
			Kind:    IssueParseFailure,
			Subject: filepath.Base(path),
			Detail:  fmt.Sprintf("read file: %s", err.Error()),
		}}
	}

	tree, err := s.parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return []Issue{{
			Kind:    IssueParseFailure,
			Subject: filepath.Base(path),
			Detail:  fmt.Sprintf("parse file: %s", err.Error()),
		}}
	}
	defer tree.Close()

	toolTypes := make(map[string]bool)   // declared tool type names
	methods := make(map[string][]string) // receiver type -> method names

	root := tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		switch node.Type() {
		case "type_declaration":
			for j := 0; j < int(node.NamedChildCount()); j++ {
				spec := node.NamedChild(j)
				if spec.Type() != "type_spec" {
					continue
				}
				nameNode := spec.ChildByFieldName("name")
				if nameNode == nil {
					continue
				}
				typeName := nameNode.Content(content)
				if strings.HasSuffix(typeName, "Tool") {
					toolTypes[typeName] = true
				}
			}
		case "method_declaration":
			recv := receiverType(node, content)
			nameNode := node.ChildByFieldName("name")
			if recv == "" || nameNode == nil {
				continue
			}
			methods[recv] = append(methods[recv], nameNode.Content(content))
		}
	}

	var issues []Issue
	for typeName := range toolTypes {
		if !hasMethod(methods[typeName], "Execute") {
			issues = append(issues, Issue{
				Kind:    IssueMissingMethod,
				Subject: typeName,
				Detail:  fmt.Sprintf("%s: tool type %s has no Execute method", filepath.Base(path), typeName),
			})
		}
	}
	return issues
}

// receiverType extracts the receiver's type identifier from a method
// declaration, unwrapping pointer receivers.
func receiverType(node *sitter.Node, content []byte) string {
	recv := node.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}

	var ident string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if ident != "" {
			return
		}
		if n.Type() == "type_identifier" {
			ident = n.Content(content)
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(recv)

	return ident
}

func hasMethod(methods []string, name string) bool {
	for _, m := range methods {
		if m == name {
			return true
		}
	}
	return false
}
