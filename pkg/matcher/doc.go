// SPDX-License-Identifier: GPL-3.0-or-later

/*
Package matcher implements the string and path matchers used by the manifest
tooling.

Supported formats

	path glob
	regexp
	string

The path glob matcher reports whether a slash separated relative path matches
a shell glob extended with the recursive '**' segment:

	'*'         matches any sequence of characters except '/'
	'?'         matches any single character except '/'
	'**'        as a whole segment matches zero or more path segments
	'[' ']'     character class, '[^' negates
	'{a,b}'     alternatives

A single leading '/' is stripped from both the path and the pattern before
matching, so "/usr/lib/*.so" and "usr/lib/*.so" are interchangeable.

The regexp matcher reports whether the given value contains a match of the
RegExp pattern (regexp.MatchString semantics). Plain literals are served by
cheaper string matchers.
*/
package matcher
