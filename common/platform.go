package common

import (
	"runtime"
)

// Platform is an operating system family a step may apply to.
type Platform string

const (
	Linux   Platform = "linux"
	Darwin  Platform = "darwin"
	Windows Platform = "windows"
	FreeBSD Platform = "freebsd"
	OpenBSD Platform = "openbsd"
	NetBSD  Platform = "netbsd"
	Unknown Platform = "unknown"
)

func (p Platform) String() string { return string(p) }

// IsUnix reports whether p is a unix-like system.
func (p Platform) IsUnix() bool {
	switch p {
	case Linux, Darwin, FreeBSD, OpenBSD, NetBSD:
		return true
	}
	return false
}

// CurrentPlatform maps GOOS onto a Platform.
func CurrentPlatform() Platform {
	return PlatformFromGOOS(runtime.GOOS)
}

func PlatformFromGOOS(goos string) Platform {
	switch goos {
	case "linux":
		return Linux
	case "darwin":
		return Darwin
	case "windows":
		return Windows
	case "freebsd":
		return FreeBSD
	case "openbsd":
		return OpenBSD
	case "netbsd":
		return NetBSD
	default:
		return Unknown
	}
}

// PlatformSet is an applicability predicate for a step.
type PlatformSet []Platform

// AnyPlatform applies everywhere.
var AnyPlatform PlatformSet

// UnixPlatforms covers every unix-like target.
var UnixPlatforms = PlatformSet{Linux, Darwin, FreeBSD, OpenBSD, NetBSD}

// Contains reports whether p is in the set. An empty set matches every platform.
func (s PlatformSet) Contains(p Platform) bool {
	if len(s) == 0 {
		return true
	}
	for _, candidate := range s {
		if candidate == p {
			return true
		}
	}
	return false
}
