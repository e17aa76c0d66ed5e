package wheel

import "fmt"

// DetectPlatforms returns a reasonable default platform tag set for the
// given OS/architecture pair, most-specific first, when the caller hasn't
// supplied an explicit --platforms list. It intentionally only covers the
// common manylinux/macOS/Windows combinations; anything more exotic needs
// an explicit --platforms flag.
func DetectPlatforms(goos, goarch string) []string {
	switch goos {
	case "linux":
		return linuxPlatforms(goarch)
	case "darwin":
		return darwinPlatforms(goarch)
	case "windows":
		return windowsPlatforms(goarch)
	default:
		return nil
	}
}

func linuxPlatforms(goarch string) []string {
	arch := linuxArch(goarch)
	if arch == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("manylinux_2_28_%s", arch),
		fmt.Sprintf("manylinux_2_17_%s", arch),
		fmt.Sprintf("manylinux2014_%s", arch),
		fmt.Sprintf("manylinux1_%s", arch),
		fmt.Sprintf("linux_%s", arch),
	}
}

func linuxArch(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "386":
		return "i686"
	default:
		return ""
	}
}

func darwinPlatforms(goarch string) []string {
	switch goarch {
	case "arm64":
		return []string{"macosx_11_0_arm64", "macosx_10_16_universal2"}
	case "amd64":
		return []string{"macosx_10_16_x86_64", "macosx_10_9_x86_64", "macosx_10_16_universal2"}
	default:
		return nil
	}
}

func windowsPlatforms(goarch string) []string {
	switch goarch {
	case "amd64":
		return []string{"win_amd64"}
	case "386":
		return []string{"win32"}
	case "arm64":
		return []string{"win_arm64"}
	default:
		return nil
	}
}
