package resolver

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"gopkg.in/masci/flickr.v3"

	"github.com/ligustah/photofetch/internal/pipeline"
)

// DefaultLicense is the set of Creative Commons license IDs searched when
// FlickrOptions.License is empty.
const DefaultLicense = "1,2,3,4,5,6"

// maxPerPage is the largest page size photos.search accepts.
const maxPerPage = 500

// FlickrOptions configures the Flickr resolver.
type FlickrOptions struct {
	APIKey    string
	APISecret string

	// License is a comma separated list of license IDs.
	License string

	// Endpoint overrides the REST endpoint. Empty means the public API.
	Endpoint string

	Logf func(format string, args ...any)
}

// Flickr resolves search terms with flickr.photos.search.
type Flickr struct {
	mu     sync.Mutex // the client's Args are reset per request
	client *flickr.FlickrClient
	opts   FlickrOptions
}

// NewFlickr creates a Flickr resolver.
func NewFlickr(opts FlickrOptions) *Flickr {
	if opts.License == "" {
		opts.License = DefaultLicense
	}
	return &Flickr{
		client: flickr.NewFlickrClient(opts.APIKey, opts.APISecret),
		opts:   opts,
	}
}

// PhotosResponse is the photos.search reply.
type PhotosResponse struct {
	flickr.BasicResponse
	Photos PhotosPage `xml:"photos"`
}

// PhotosPage is one page of search results.
type PhotosPage struct {
	Page    int         `xml:"page,attr"`
	Pages   int         `xml:"pages,attr"`
	PerPage int         `xml:"perpage,attr"`
	Total   int         `xml:"total,attr"`
	Photo   []PhotoItem `xml:"photo"`
}

// PhotoItem is a single search hit.
type PhotoItem struct {
	ID     string `xml:"id,attr"`
	Owner  string `xml:"owner,attr"`
	Secret string `xml:"secret,attr"`
	Server string `xml:"server,attr"`
	Farm   string `xml:"farm,attr"`
	Title  string `xml:"title,attr"`
}

// URL is the static image address of the photo.
func (p PhotoItem) URL() string {
	return fmt.Sprintf("https://farm%s.staticflickr.com/%s/%s_%s.jpg", p.Farm, p.Server, p.ID, p.Secret)
}

// Resolve returns up to count photos matching term. Zero matches is an
// error: a search that finds nothing has nothing to download.
func (f *Flickr) Resolve(ctx context.Context, term string, count int) ([]pipeline.Task, error) {
	if term == "" {
		return nil, resolverError("empty search term")
	}
	if count <= 0 {
		count = 100
	}

	perPage := count
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	var tasks []pipeline.Task
	for page := 1; len(tasks) < count; page++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrResolver, err)
		}

		resp, err := f.search(term, page, perPage)
		if err != nil {
			return nil, err
		}
		f.logf("flickr: page %d/%d, %d photos", resp.Photos.Page, resp.Photos.Pages, len(resp.Photos.Photo))

		for _, p := range resp.Photos.Photo {
			if len(tasks) == count {
				break
			}
			tasks = append(tasks, pipeline.Task{
				URL: p.URL(),
				Metadata: map[string]string{
					"source": "flickr",
					"id":     p.ID,
					"owner":  p.Owner,
					"title":  p.Title,
					"search": term,
					"ext":    "jpg",
				},
			})
		}

		if len(resp.Photos.Photo) == 0 || page >= resp.Photos.Pages {
			break
		}
	}

	if len(tasks) == 0 {
		return nil, resolverError("no photos found for %q", term)
	}
	return tasks, nil
}

func (f *Flickr) search(term string, page, perPage int) (*PhotosResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.client.Init()
	if f.opts.Endpoint != "" {
		f.client.EndpointUrl = f.opts.Endpoint
	}
	f.client.Args.Set("method", "flickr.photos.search")
	f.client.Args.Set("api_key", f.client.ApiKey)
	f.client.Args.Set("text", term)
	f.client.Args.Set("license", f.opts.License)
	f.client.Args.Set("media", "photos")
	f.client.Args.Set("per_page", strconv.Itoa(perPage))
	f.client.Args.Set("page", strconv.Itoa(page))

	response := &PhotosResponse{}
	if err := flickr.DoGet(f.client, response); err != nil {
		return nil, fmt.Errorf("%w: flickr search page %d: %w", ErrResolver, page, err)
	}
	if response.HasErrors() {
		return nil, resolverError("flickr search page %d: %s", page, response.ErrorMsg())
	}
	return response, nil
}

func (f *Flickr) logf(format string, args ...any) {
	if f.opts.Logf != nil {
		f.opts.Logf(format, args...)
	}
}
