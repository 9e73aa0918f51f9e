// Package resolver turns a search term into pipeline tasks.
//
// Two resolvers ship with photofetch: Flickr, which pages through
// flickr.photos.search restricted to Creative Commons licenses, and List,
// which reads URLs from a text file. Both wrap their failures in ErrResolver.
package resolver
