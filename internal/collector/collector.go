// Package collector enumerates candidate links from indexes, find-links
// pages, and local directories (§4.2).
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/frostming/unearth/internal/fetch"
	"github.com/frostming/unearth/internal/link"
	"github.com/frostming/unearth/internal/log"
)

// Source is one link-collection origin.
type Source struct {
	// Kind is "index", "find-links", or "directory".
	Kind string
	// Location is the index base URL, the find-links URL/path, or the
	// local directory path.
	Location string
}

const (
	KindIndex      = "index"
	KindFindLinks  = "find-links"
	KindDirectory  = "directory"
)

// acceptHeader prefers PEP 691 JSON over either HTML content-type,
// resolving design note (a): prefer JSON when an index offers content
// negotiation between representations.
const acceptHeader = "application/vnd.pypi.simple.v1+json, application/vnd.pypi.simple.v1+html;q=0.9, text/html;q=0.8"

// Collector enumerates links for a project name across a set of sources.
type Collector struct {
	Session Session
	Logger  log.Logger
}

// Session is the subset of fetch.Session the collector needs.
type Session interface {
	Get(ctx context.Context, rawURL string, headers map[string]string) (*fetch.Response, error)
}

// Result pairs a source's outcome with any non-fatal error encountered, so
// the caller can report-and-skip per §4.2's "failures on any individual
// source are reported and skipped, not fatal" rule.
type Result struct {
	Source Source
	Links  []link.Link
	Err    error
}

// New constructs a Collector.
func New(session Session, logger log.Logger) *Collector {
	if logger == nil {
		logger = log.Default()
	}
	return &Collector{Session: session, Logger: logger}
}

// Collect enumerates links for name across every source, in configuration
// order, deduplicating by normalized URL with first-seen order preserved.
// Independent index fetches may run concurrently (§5); results are still
// assembled in source order so deterministic ranking ties are preserved.
func (c *Collector) Collect(ctx context.Context, name string, sources []Source) ([]link.Link, []error) {
	results := make([]Result, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			links, err := c.collectOne(gctx, name, src)
			results[i] = Result{Source: src, Links: links, Err: err}
			return nil // per-source errors are collected, never fatal to the group
		})
	}
	_ = g.Wait()

	seen := map[string]bool{}
	var all []link.Link
	var errs []error
	allFailed := true
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("source %s (%s): %w", r.Source.Location, r.Source.Kind, r.Err))
			continue
		}
		allFailed = false
		for _, l := range r.Links {
			if seen[l.Normalized()] {
				continue
			}
			seen[l.Normalized()] = true
			all = append(all, l)
		}
	}
	if allFailed && len(sources) > 0 {
		return nil, errs
	}
	return all, errs
}

func (c *Collector) collectOne(ctx context.Context, name string, src Source) ([]link.Link, error) {
	switch src.Kind {
	case KindIndex:
		return c.collectIndex(ctx, name, src.Location)
	case KindFindLinks:
		return c.collectFindLinks(ctx, src.Location)
	case KindDirectory:
		return c.collectDirectory(name, src.Location)
	default:
		return nil, fmt.Errorf("unknown source kind %q", src.Kind)
	}
}

func (c *Collector) collectIndex(ctx context.Context, name, baseURL string) ([]link.Link, error) {
	pageURL, err := fetch.JoinIndexPath(baseURL, name)
	if err != nil {
		return nil, err
	}
	return c.fetchAndParse(ctx, pageURL)
}

func (c *Collector) collectFindLinks(ctx context.Context, location string) ([]link.Link, error) {
	if isLocalPath(location) {
		return c.collectDirectory("", location)
	}
	return c.fetchAndParse(ctx, location)
}

func (c *Collector) fetchAndParse(ctx context.Context, pageURL string) ([]link.Link, error) {
	resp, err := c.Session.Get(ctx, pageURL, map[string]string{"Accept": acceptHeader})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == 404 {
		resp.Body().Close()
		return nil, nil
	}
	if resp.StatusCode >= 400 {
		resp.Body().Close()
		return nil, fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, pageURL)
	}

	contentType := resp.Header.Get("Content-Type")
	body, err := resp.Text()
	if err != nil {
		return nil, err
	}

	if strings.HasPrefix(strings.ToLower(contentType), "application/vnd.pypi.simple.v1+json") {
		return ParseJSON([]byte(body), resp.URL)
	}
	if isHTMLContentType(contentType) {
		return ParseHTML(body, resp.URL)
	}
	return nil, fmt.Errorf("unsupported Content-Type %q fetching %s", contentType, pageURL)
}

// ParseHTML parses an HTML simple-index or find-links page into links,
// honoring <base href>, data-requires-python, data-yanked, and
// data-dist-info-metadata attributes.
func ParseHTML(body, pageURL string) ([]link.Link, error) {
	doc, err := xhtml.Parse(strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	base := pageURL
	var links []link.Link

	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode {
			switch n.Data {
			case "base":
				if href := attr(n, "href"); href != "" {
					if u, err := resolveRef(pageURL, href); err == nil {
						base = u
					}
				}
			case "a":
				if href := attr(n, "href"); href != "" {
					resolved, err := resolveRef(base, href)
					if err == nil {
						links = append(links, linkFromAnchor(n, resolved, pageURL))
					}
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return links, nil
}

func linkFromAnchor(n *xhtml.Node, resolvedURL, comesFrom string) link.Link {
	l := link.New(resolvedURL, comesFrom)
	if rp := attr(n, "data-requires-python"); rp != "" {
		l.RequiresPython = html.UnescapeString(rp)
	}
	if yanked, ok := attrOK(n, "data-yanked"); ok {
		reason := yanked
		l.YankReason = &reason
	}
	if meta, ok := attrOK(n, "data-dist-info-metadata"); ok {
		l.Metadata = metadataLink(resolvedURL, meta)
	}
	if meta, ok := attrOK(n, "data-core-metadata"); ok && l.Metadata == nil {
		l.Metadata = metadataLink(resolvedURL, meta)
	}
	return l
}

func metadataLink(artifactURL, hashSpec string) *link.Link {
	m := link.New(artifactURL, "")
	if hashSpec != "" && hashSpec != "true" && strings.Contains(hashSpec, "=") {
		parts := strings.SplitN(hashSpec, "=", 2)
		m.Hashes[strings.ToLower(parts[0])] = parts[1]
	}
	return &m
}

func attr(n *xhtml.Node, key string) string {
	v, _ := attrOK(n, key)
	return v
}

func attrOK(n *xhtml.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func resolveRef(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

// jsonIndexResponse models the PEP 691 simple JSON API.
type jsonIndexResponse struct {
	Name  string          `json:"name"`
	Files []jsonIndexFile `json:"files"`
}

type jsonIndexFile struct {
	URL              string            `json:"url"`
	Hashes           map[string]string `json:"hashes"`
	RequiresPython   string            `json:"requires-python"`
	Yanked           json.RawMessage   `json:"yanked"`
	DistInfoMetadata json.RawMessage   `json:"dist-info-metadata"`
	CoreMetadata     json.RawMessage   `json:"core-metadata"`
}

// ParseJSON parses a PEP 691 simple-index JSON response into links.
func ParseJSON(body []byte, pageURL string) ([]link.Link, error) {
	var resp jsonIndexResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("invalid PEP 691 JSON response: %w", err)
	}

	var links []link.Link
	for _, f := range resp.Files {
		l := link.New(f.URL, pageURL)
		for algo, hex := range f.Hashes {
			l.Hashes[strings.ToLower(algo)] = hex
		}
		l.RequiresPython = f.RequiresPython
		if reason := parseYanked(f.Yanked); reason != nil {
			l.YankReason = reason
		}
		if meta := parseMetadataField(f.CoreMetadata); meta != nil {
			l.Metadata = meta
		} else if meta := parseMetadataField(f.DistInfoMetadata); meta != nil {
			l.Metadata = meta
		}
		if l.Metadata != nil {
			m := *l.Metadata
			m.URL = f.URL
			l.Metadata = &m
		}
		links = append(links, l)
	}
	return links, nil
}

// parseYanked decodes PEP 691's "yanked" field, which is either a bool
// (true => yanked, empty reason) or a string (the reason).
func parseYanked(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if !b {
			return nil
		}
		empty := ""
		return &empty
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	return nil
}

func parseMetadataField(raw json.RawMessage) *link.Link {
	if len(raw) == 0 {
		return nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if !b {
			return nil
		}
		l := link.New("", "")
		return &l
	}
	var hashes map[string]string
	if err := json.Unmarshal(raw, &hashes); err == nil {
		l := link.New("", "")
		for algo, hex := range hashes {
			l.Hashes[strings.ToLower(algo)] = hex
		}
		return &l
	}
	return nil
}

// collectDirectory enumerates a local directory per §4.2 rule 4: every
// regular file becomes a file:// link; subdirectories matching the project
// name are recursed into one level for source trees.
func (c *Collector) collectDirectory(name, dir string) ([]link.Link, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var links []link.Link
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		if e.IsDir() {
			if name != "" && matchesProjectDir(e.Name(), name) {
				sub, err := os.ReadDir(full)
				if err != nil {
					continue
				}
				for _, se := range sub {
					if !se.IsDir() {
						links = append(links, link.New(pathToFileURL(filepath.Join(full, se.Name())), dir))
					}
				}
			}
			continue
		}
		links = append(links, link.New(pathToFileURL(full), dir))
	}
	return links, nil
}

func matchesProjectDir(dirName, projectName string) bool {
	return strings.EqualFold(strings.ReplaceAll(dirName, "_", "-"), strings.ReplaceAll(projectName, "_", "-")) ||
		strings.HasPrefix(strings.ToLower(dirName), strings.ToLower(projectName))
}

func pathToFileURL(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		abs = p
	}
	abs = filepath.ToSlash(abs)
	if !strings.HasPrefix(abs, "/") {
		abs = "/" + abs
	}
	return "file://" + abs
}

func isLocalPath(location string) bool {
	if strings.Contains(location, "://") {
		return false
	}
	_, err := os.Stat(location)
	return err == nil
}

// isHTMLContentType reports whether the given MIME type is one of the
// supported HTML content types from §4.2.
func isHTMLContentType(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "text/html" || mt == "application/vnd.pypi.simple.v1+html"
}
