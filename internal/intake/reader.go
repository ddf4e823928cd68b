package intake

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
)

// TextReader extracts text from selected files. Local files go through the
// document loader, in-memory files straight through the parser.
type TextReader struct {
	parser parser.Parser
	loader document.Loader
}

func NewTextReader(ctx context.Context) (*TextReader, error) {
	parserExt, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("init parser: %w", err)
	}
	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      parserExt,
	})
	if err != nil {
		return nil, fmt.Errorf("init file loader: %w", err)
	}
	return &TextReader{parser: parserExt, loader: loader}, nil
}

// ReadText returns the full text content of f.
func (r *TextReader) ReadText(ctx context.Context, f *SelectedFile) (string, error) {
	if f == nil {
		return "", fmt.Errorf("no file")
	}
	var (
		docs []*schema.Document
		err  error
	)
	if f.Path != "" {
		docs, err = r.loader.Load(ctx, document.Source{URI: f.Path})
		if err != nil {
			return "", fmt.Errorf("load %s: %w", f.Name, err)
		}
	} else {
		rc, openErr := f.Open()
		if openErr != nil {
			return "", fmt.Errorf("open %s: %w", f.Name, openErr)
		}
		defer rc.Close()
		docs, err = r.parser.Parse(ctx, rc, parser.WithURI(f.Name))
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", f.Name, err)
		}
	}
	return joinDocuments(docs), nil
}

func joinDocuments(docs []*schema.Document) string {
	if len(docs) == 1 && docs[0] != nil {
		return docs[0].Content
	}
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc == nil || strings.TrimSpace(doc.Content) == "" {
			continue
		}
		parts = append(parts, doc.Content)
	}
	return strings.Join(parts, "\n\n")
}
