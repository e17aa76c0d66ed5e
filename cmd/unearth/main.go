// Command unearth finds and optionally downloads packages satisfying a
// PEP 508 requirement string, per §6.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/frostming/unearth/internal/config"
	"github.com/frostming/unearth/internal/evaluator"
	"github.com/frostming/unearth/internal/fetch"
	"github.com/frostming/unearth/internal/finder"
	"github.com/frostming/unearth/internal/log"
	"github.com/frostming/unearth/internal/requirement"
	"github.com/frostming/unearth/internal/wheel"
)

// version is the current version of unearth.
var version = "0.1.0"

type cliFlags struct {
	verbose      bool
	indexURLs    []string
	findLinks    []string
	trustedHosts []string
	noBinary     bool
	onlyBinary   bool
	preferBinary bool
	all          bool
	linkOnly     bool
	download     string
	pythonVer    string
	abis         []string
	impl         string
	platforms    []string
}

func main() {
	var flags cliFlags

	rootCmd := &cobra.Command{
		Use:     "unearth <requirement>",
		Short:   "Find and download packages from a PEP 508 requirement string",
		Version: version,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], flags)
		},
		SilenceUsage: true,
	}

	rootCmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.Flags().StringSliceVarP(&flags.indexURLs, "index-url", "i", nil, "(Multiple)(PEP 503) Simple Index URLs")
	rootCmd.Flags().StringSliceVarP(&flags.findLinks, "find-link", "f", nil, "(Multiple) URLs or locations to find links from")
	rootCmd.Flags().StringSliceVar(&flags.trustedHosts, "trusted-host", nil, "(Multiple) Trusted hosts that should skip TLS verification")
	rootCmd.Flags().BoolVar(&flags.noBinary, "no-binary", false, "Exclude binary packages from the results")
	rootCmd.Flags().BoolVar(&flags.onlyBinary, "only-binary", false, "Only include binary packages in the results")
	rootCmd.Flags().BoolVar(&flags.preferBinary, "prefer-binary", false, "Prefer binary packages even if sdist candidates of newer versions exist")
	rootCmd.Flags().BoolVar(&flags.all, "all", false, "Return all applicable versions")
	rootCmd.Flags().BoolVarP(&flags.linkOnly, "link-only", "L", false, "Only print links instead of a JSON object")
	rootCmd.Flags().StringVarP(&flags.download, "download", "d", "", "Download the package(s) to DIR")
	rootCmd.Flags().Lookup("download").NoOptDefVal = "."

	rootCmd.Flags().StringVar(&flags.pythonVer, "python-version", "", "Target Python version, e.g. 3.11")
	rootCmd.Flags().StringSliceVar(&flags.abis, "abis", nil, "Comma-separated list of ABIs, e.g. cp39,cp310")
	rootCmd.Flags().StringVar(&flags.impl, "implementation", "", "Python implementation, e.g. cp,pp,jy,ip")
	rootCmd.Flags().StringSliceVar(&flags.platforms, "platforms", nil, "Comma-separated list of platforms, e.g. win_amd64,linux_x86_64")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		exitWithCode(ExitUsage)
	}
}

func run(ctx context.Context, reqString string, flags cliFlags) error {
	setupLogger(flags.verbose)

	req, err := requirement.Parse(reqString)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		exitWithCode(ExitUsage)
		return nil
	}

	target, err := resolveTarget(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		exitWithCode(ExitUsage)
		return nil
	}

	indexURLs := flags.indexURLs
	if len(indexURLs) == 0 {
		indexURLs = []string{"https://pypi.org/simple/"}
	}

	fc := evaluator.FormatControl{NoBinary: map[string]bool{}, OnlyBinary: map[string]bool{}}
	if flags.noBinary {
		fc.NoBinary[req.Name] = true
	}
	if flags.onlyBinary {
		fc.OnlyBinary[req.Name] = true
	}

	cfg, err := config.DefaultConfig()
	if err != nil {
		return err
	}

	session := fetch.New(fetch.Options{
		TrustedHosts: flags.trustedHosts,
		Timeout:      cfg.RequestTimeout,
		RetryMax:     cfg.RetryMax,
		Logger:       log.Default(),
	})
	defer session.Close()

	f := finder.New(session, finder.Options{
		IndexURLs:    indexURLs,
		FindLinks:    flags.findLinks,
		Target:       target,
		Format:       fc,
		PreferBinary: flags.preferBinary,
		TrustedHosts: flags.trustedHosts,
	}, log.Default())

	candidates, _, err := f.FindAllPackages(ctx, req)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		fmt.Fprintln(os.Stderr, "No matches are found.")
		exitWithCode(ExitNoMatch)
		return nil
	}
	if !flags.all {
		candidates = candidates[:1]
	}

	var results []packageResult
	var downloadDir string
	if flags.download != "" {
		if err := os.MkdirAll(flags.download, 0o755); err != nil {
			return fmt.Errorf("failed to create download directory: %w", err)
		}
		tmp, err := os.MkdirTemp("", "unearth-download-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(tmp)
		downloadDir = tmp
	}

	for _, c := range candidates {
		result := toPackageResult(c)
		if flags.download != "" {
			dest := destForPackage(flags.download, c)
			dl := downloadDir
			if c.Link.IsWheel() {
				dl = dest // wheels stay as downloaded, so fetch them straight into DIR
			}
			localPath, err := f.DownloadAndUnpack(ctx, c, dest, dl)
			if err != nil {
				return fmt.Errorf("failed to download %s: %w", c.Name, err)
			}
			result.LocalPath = localPath
		}
		results = append(results, result)
	}

	printResults(results, flags.linkOnly)
	exitWithCode(ExitSuccess)
	return nil
}

func destForPackage(downloadDir string, c evaluator.Candidate) string {
	if c.Link.IsWheel() {
		return downloadDir
	}
	name := c.Link.Filename()
	if idx := strings.Index(name, "@"); idx != -1 {
		name = name[:idx]
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return filepath.Join(downloadDir, base)
}

func printResults(results []packageResult, linkOnly bool) {
	if linkOnly {
		for _, r := range results {
			fmt.Println(r.Link.URL)
			if r.LocalPath != "" {
				fmt.Println("  ==>", r.LocalPath)
			}
		}
		return
	}

	var out any
	if len(results) == 1 {
		out = results[0]
	} else {
		out = results
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}

func setupLogger(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	log.SetDefault(log.New(handler))
}

func resolveTarget(flags cliFlags) (wheel.Target, error) {
	var majorMinor [2]int
	if flags.pythonVer != "" {
		parts := strings.Split(flags.pythonVer, ".")
		if len(parts) < 2 {
			return wheel.Target{}, fmt.Errorf("invalid --python-version %q: expected MAJOR.MINOR", flags.pythonVer)
		}
		major, err := strconv.Atoi(parts[0])
		if err != nil {
			return wheel.Target{}, fmt.Errorf("invalid --python-version %q", flags.pythonVer)
		}
		minor, err := strconv.Atoi(parts[1])
		if err != nil {
			return wheel.Target{}, fmt.Errorf("invalid --python-version %q", flags.pythonVer)
		}
		majorMinor = [2]int{major, minor}
	} else {
		majorMinor = [2]int{3, 12}
	}

	platforms := flags.platforms
	if len(platforms) == 0 {
		platforms = wheel.DetectPlatforms(runtime.GOOS, runtime.GOARCH)
	}

	impl := wheel.Implementation(flags.impl)
	abi := ""
	if len(flags.abis) > 0 {
		abi = flags.abis[0]
	} else {
		abi = fmt.Sprintf("cp%d%d", majorMinor[0], majorMinor[1])
	}

	return wheel.Target{
		MajorMinor:     majorMinor,
		ABI:            abi,
		Platforms:      platforms,
		Implementation: impl,
	}, nil
}

// packageResult mirrors the JSON schema from §6:
// {name, version, link:{url, comes_from, yank_reason, requires_python, metadata}}.
type packageResult struct {
	Name      string   `json:"name"`
	Version   *string  `json:"version"`
	Link      linkJSON `json:"link"`
	LocalPath string   `json:"local_path,omitempty"`
}

type linkJSON struct {
	URL            string        `json:"url"`
	ComesFrom      string        `json:"comes_from"`
	YankReason     *string       `json:"yank_reason"`
	RequiresPython string        `json:"requires_python"`
	Metadata       *metadataJSON `json:"metadata,omitempty"`
}

type metadataJSON struct {
	URL string `json:"url"`
}

func toPackageResult(c evaluator.Candidate) packageResult {
	var version *string
	if c.Version != nil {
		s := c.Version.String()
		version = &s
	}

	var meta *metadataJSON
	if c.Link.HasMetadata() {
		meta = &metadataJSON{URL: c.Link.Metadata.URL}
	}

	return packageResult{
		Name:    c.Name,
		Version: version,
		Link: linkJSON{
			URL:            c.Link.URL,
			ComesFrom:      c.Link.ComesFrom,
			YankReason:     c.Link.YankReason,
			RequiresPython: c.Link.RequiresPython,
			Metadata:       meta,
		},
	}
}
