// Package finder orchestrates the package-index finding pipeline: parse a
// requirement, collect candidate links from every configured source,
// evaluate and rank them, and hand back the best match or download it.
// This is the public entry point described in §6.
package finder

import (
	"context"
	"fmt"

	"github.com/frostming/unearth/internal/collector"
	"github.com/frostming/unearth/internal/download"
	"github.com/frostming/unearth/internal/evaluator"
	"github.com/frostming/unearth/internal/fetch"
	"github.com/frostming/unearth/internal/link"
	"github.com/frostming/unearth/internal/log"
	"github.com/frostming/unearth/internal/requirement"
	"github.com/frostming/unearth/internal/vcs"
	"github.com/frostming/unearth/internal/wheel"
)

// Options configures a Finder, mirroring the Finder configuration table
// from §6.
type Options struct {
	IndexURLs          []string
	FindLinks          []string
	Directories        []string
	Target             wheel.Target
	Format             evaluator.FormatControl
	PreferBinary       bool
	AllowYanked        bool
	RespectSourceOrder bool
	AllowPrereleases   *bool
	TrustedHosts       []string
}

// Finder ties together link collection and candidate evaluation for a
// fixed set of sources.
type Finder struct {
	Session   fetch.Session
	Collector *collector.Collector
	Downloader *download.Downloader
	Logger    log.Logger
	Options   Options
}

// New constructs a Finder from a fetch.Session and Options.
func New(session fetch.Session, opts Options, logger log.Logger) *Finder {
	if logger == nil {
		logger = log.Default()
	}
	return &Finder{
		Session:    session,
		Collector:  collector.New(session, logger),
		Downloader: download.New(downloadSession{session}, logger, nil),
		Logger:     logger,
		Options:    opts,
	}
}

// downloadSession adapts a fetch.Session to download.Session: the two
// packages define independent Response surfaces (internal/download does
// not import internal/fetch), so this bridges
// fetch's concrete *fetch.Response to download's Response interface.
type downloadSession struct {
	fetch.Session
}

func (s downloadSession) Get(ctx context.Context, rawURL string, headers map[string]string) (download.Response, error) {
	resp, err := s.Session.Get(ctx, rawURL, headers)
	if err != nil {
		return nil, err
	}
	return downloadResponse{resp}, nil
}

// downloadResponse adapts *fetch.Response's StatusCode field to the
// StatusCode() method download.Response requires.
type downloadResponse struct {
	*fetch.Response
}

func (r downloadResponse) StatusCode() int { return r.Response.StatusCode }

func (f *Finder) sources() []collector.Source {
	var sources []collector.Source
	for _, u := range f.Options.IndexURLs {
		sources = append(sources, collector.Source{Kind: collector.KindIndex, Location: u})
	}
	for _, u := range f.Options.FindLinks {
		sources = append(sources, collector.Source{Kind: collector.KindFindLinks, Location: u})
	}
	for _, d := range f.Options.Directories {
		sources = append(sources, collector.Source{Kind: collector.KindDirectory, Location: d})
	}
	return sources
}

// FindAllPackages enumerates every applicable candidate for a requirement,
// ranked best-first, without selecting a winner.
func (f *Finder) FindAllPackages(ctx context.Context, req requirement.Requirement) ([]evaluator.Candidate, []evaluator.Rejection, error) {
	if req.Kind != requirement.KindNamed {
		c := directCandidate(req)
		return []evaluator.Candidate{c}, nil, nil
	}

	links, collectErrs := f.linksFor(ctx, req)
	if links == nil && len(collectErrs) > 0 {
		return nil, nil, fmt.Errorf("no source could be reached: %v", collectErrs)
	}

	candidates, rejections := evaluator.Evaluate(req, links, evaluator.Options{
		Target:             f.Options.Target,
		Format:             f.Options.Format,
		PreferBinary:       f.Options.PreferBinary,
		AllowYanked:        f.Options.AllowYanked,
		RespectSourceOrder: f.Options.RespectSourceOrder,
		AllowPrereleases:   f.Options.AllowPrereleases,
	})
	return candidates, rejections, nil
}

// FindBestMatch returns the single best candidate for a requirement, or a
// structured empty-result reason when none qualifies.
func (f *Finder) FindBestMatch(ctx context.Context, req requirement.Requirement) (evaluator.BestMatch, error) {
	if req.Kind != requirement.KindNamed {
		return f.bestMatchForDirectReference(req), nil
	}

	links, collectErrs := f.linksFor(ctx, req)
	if links == nil && len(collectErrs) > 0 {
		return evaluator.BestMatch{}, fmt.Errorf("no source could be reached: %v", collectErrs)
	}

	bm := evaluator.SelectBest(req, links, evaluator.Options{
		Target:             f.Options.Target,
		Format:             f.Options.Format,
		PreferBinary:       f.Options.PreferBinary,
		AllowYanked:        f.Options.AllowYanked,
		RespectSourceOrder: f.Options.RespectSourceOrder,
		AllowPrereleases:   f.Options.AllowPrereleases,
	})
	return bm, nil
}

// bestMatchForDirectReference builds a one-candidate BestMatch for URL and
// VCS requirements, which bypass index collection and evaluation entirely
// because the link is already fully determined by the requirement string.
func (f *Finder) bestMatchForDirectReference(req requirement.Requirement) evaluator.BestMatch {
	c := directCandidate(req)
	return evaluator.BestMatch{Best: &c, Applicable: []evaluator.Candidate{c}}
}

// directCandidate builds the single candidate a URL or VCS requirement
// resolves to, reattaching the "scheme+" prefix and pinned ref that
// requirement.Parse stripped off (§4.1) so link.New's detectVCS can
// recognize the scheme and downloadVCS can see the pinned revision. For a
// URL requirement the "#algo=hex" fragment is reattached the same way.
func directCandidate(req requirement.Requirement) evaluator.Candidate {
	rawURL := req.URL
	if req.Kind == requirement.KindVCS {
		rawURL = req.VCSType + "+" + rawURL
		if req.Ref != "" {
			rawURL += "@" + req.Ref
		}
	} else if req.Hash != "" {
		rawURL += "#" + req.Hash
	}
	l := link.New(rawURL, "")
	return evaluator.Candidate{Name: req.Name, Link: l}
}

func (f *Finder) linksFor(ctx context.Context, req requirement.Requirement) ([]link.Link, []error) {
	return f.Collector.Collect(ctx, req.Name, f.sources())
}

// DownloadAndUnpack downloads a candidate's link to downloadDir (or into
// location itself when downloadDir is empty; no temporary directory is
// created) and, for archive formats that aren't wheels, unpacks it into
// location. A wheel is not copied into location: the returned path is the
// downloaded file inside downloadDir.
func (f *Finder) DownloadAndUnpack(ctx context.Context, c evaluator.Candidate, location, downloadDir string) (string, error) {
	if c.Link.IsVCS() {
		return f.downloadVCS(ctx, c, location)
	}

	if downloadDir == "" {
		downloadDir = location
	}

	path, err := f.Downloader.Download(ctx, c.Link, downloadDir, nil)
	if err != nil {
		return "", err
	}

	if c.Link.IsWheel() {
		return path, nil
	}

	if err := download.Unpack(path, location); err != nil {
		return "", err
	}
	return location, nil
}

func (f *Finder) downloadVCS(ctx context.Context, c evaluator.Candidate, location string) (string, error) {
	driver, err := vcs.Get(c.Link.VCS)
	if err != nil {
		return "", err
	}
	repoURL, rev, err := vcs.ParseVCSURL(c.Link.VCS, c.Link.URL)
	if err != nil {
		return "", err
	}
	if err := driver.Clone(ctx, repoURL, rev, location); err != nil {
		return "", err
	}
	return location, nil
}
