package fdiff

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// CodeBlock is the body of one fenced block in a markdown document.
type CodeBlock struct {
	Content string
	// Fence is the opening fence as written, e.g. "````" or "~~~".
	Fence string
}

func ExtractCodeBlocks(source []byte) ([]CodeBlock, error) {
	var blocks []CodeBlock
	parser := goldmark.DefaultParser()
	root := parser.Parse(text.NewReader(source))

	walker := func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		fencedCodeBlock, ok := node.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		var block CodeBlock
		var content bytes.Buffer
		lines := fencedCodeBlock.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			content.Write(line.Value(source))
		}
		block.Content = content.String()
		if lines.Len() > 0 {
			block.Fence = openingFence(source, lines.At(0).Start)
		}

		blocks = append(blocks, block)
		return ast.WalkSkipChildren, nil
	}

	if err := ast.Walk(root, walker); err != nil {
		return nil, err
	}

	return blocks, nil
}

// openingFence returns the fence run of the line preceding the first
// content line of a fenced block.
func openingFence(source []byte, contentStart int) string {
	lineEnd := bytes.LastIndexByte(source[:contentStart], '\n')
	if lineEnd < 0 {
		return ""
	}
	lineStart := bytes.LastIndexByte(source[:lineEnd], '\n') + 1
	line := strings.TrimLeft(string(source[lineStart:lineEnd]), " \t")
	fenceChar := byte('`')
	if strings.HasPrefix(line, "~") {
		fenceChar = '~'
	}
	n := 0
	for n < len(line) && line[n] == fenceChar {
		n++
	}
	return line[:n]
}

// isEnvelopeFence reports whether a fence can wrap patch blocks, which
// themselves use plain triple backticks.
func isEnvelopeFence(fence string) bool {
	return strings.HasPrefix(fence, "~~~") || strings.HasPrefix(fence, "````")
}

func containsOpenMarker(s string) bool {
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), openMarker) {
			return true
		}
	}
	return false
}

// UnwrapEnvelope returns the patch text hidden inside outer markdown fences
// (as pasted from a chat window). Content without such an envelope is
// returned unchanged.
func UnwrapEnvelope(content string) (string, error) {
	blocks, err := ExtractCodeBlocks([]byte(content))
	if err != nil {
		return "", err
	}

	var parts []string
	for _, b := range blocks {
		if isEnvelopeFence(b.Fence) && containsOpenMarker(b.Content) {
			parts = append(parts, b.Content)
		}
	}
	if len(parts) == 0 {
		return content, nil
	}
	return strings.Join(parts, "\n"), nil
}
