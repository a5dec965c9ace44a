package trees

import (
	"net/url"
	"path/filepath"
	"strings"
)

// FileURI converts a local path to a file:// URI with escaped segments.
func FileURI(path string) string {
	path = filepath.ToSlash(filepath.Clean(path))
	if path == "/" || path == "." {
		return "file:///"
	}
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return "file:///" + strings.Join(segments, "/")
}

// ChildURI returns the URI of the entry called name inside dir.
func ChildURI(dir, name string) string {
	return strings.TrimSuffix(dir, "/") + "/" + url.PathEscape(name)
}

// URIPath returns the unescaped local path of a file:// URI.
func URIPath(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	if u.Path == "" {
		return "/", nil
	}
	return filepath.FromSlash(u.Path), nil
}

// pathStart returns the offset of the path component of uri, -1 when the URI
// has no hierarchical path.
func pathStart(uri string) int {
	i := strings.Index(uri, "://")
	if i < 0 {
		return strings.IndexByte(uri, '/')
	}
	j := strings.IndexByte(uri[i+3:], '/')
	if j < 0 {
		return -1
	}
	return i + 3 + j
}

func trimURI(uri string) string {
	start := pathStart(uri)
	for len(uri) > start+1 && strings.HasSuffix(uri, "/") {
		uri = uri[:len(uri)-1]
	}
	return uri
}

// uriParent returns the URI of the containing directory, "" for the root
// of the URI's file system.
func uriParent(uri string) string {
	uri = trimURI(uri)
	start := pathStart(uri)
	if start < 0 || len(uri) <= start+1 {
		return ""
	}
	last := strings.LastIndexByte(uri, '/')
	if last <= start {
		return uri[:start+1]
	}
	return uri[:last]
}

// uriBase returns the unescaped last segment of uri.
func uriBase(uri string) string {
	uri = trimURI(uri)
	start := pathStart(uri)
	if start < 0 || len(uri) <= start+1 {
		return ""
	}
	seg := uri[strings.LastIndexByte(uri, '/')+1:]
	if name, err := url.PathUnescape(seg); err == nil {
		return name
	}
	return seg
}

// isURIAncestor reports whether ancestor is a strict hierarchical prefix of uri.
func isURIAncestor(ancestor, uri string) bool {
	if len(ancestor) >= len(uri) || !strings.HasPrefix(uri, ancestor) {
		return false
	}
	return strings.HasSuffix(ancestor, "/") || uri[len(ancestor)] == '/'
}

// uriSegments returns the unescaped segments of uri below ancestor.
func uriSegments(ancestor, uri string) []string {
	rest := strings.Trim(strings.TrimPrefix(uri, ancestor), "/")
	if rest == "" {
		return nil
	}
	segments := strings.Split(rest, "/")
	for i, s := range segments {
		if name, err := url.PathUnescape(s); err == nil {
			segments[i] = name
		}
	}
	return segments
}
