package main

import (
	"net/url"
	"strings"
)

// uriToPath converts a file:// URI (the only scheme this server
// accepts) to an absolute filesystem path. Non-file URIs are returned
// unchanged, letting the caller fail loudly downstream rather than
// silently mangling them.
func uriToPath(uri string) string {
	if !strings.HasPrefix(uri, "file://") {
		return uri
	}
	u, err := url.Parse(uri)
	if err != nil {
		return strings.TrimPrefix(uri, "file://")
	}
	path := u.Path
	if strings.HasPrefix(path, "/") && len(path) > 2 && path[2] == ':' {
		path = path[1:] // Windows drive-letter path carried as /C:/...
	}
	return path
}

// pathToURI is uriToPath's inverse.
func pathToURI(path string) string {
	path = strings.ReplaceAll(path, string('\\'), "/")
	if len(path) > 1 && path[1] == ':' {
		path = "/" + path // re-add the Windows drive-letter leading slash
	}
	return "file://" + path
}
