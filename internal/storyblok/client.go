package storyblok

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/alexsergivan/transliterator"
	"github.com/go-resty/resty/v2"
	"github.com/karlseguin/ccache/v2"
	"go.uber.org/zap"

	"github.com/redgrape/thegrid/internal/config"
)

// Client talks to the storyblok management API. Stories are always written
// as drafts; publishing is a separate explicit flag.
type Client struct {
	client   *resty.Client
	logger   *zap.Logger
	spaceID  int64
	cache    *ccache.Cache
	translit *transliterator.Transliterator
}

const listCacheTTL = 30 * time.Second

func NewClient(conf *config.Config, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(conf.Storyblok.BaseURL).
		SetTimeout(time.Second * 15).
		SetHeader("Authorization", conf.Storyblok.Token)

	return &Client{
		client:   client,
		logger:   logger.Named("storyblok"),
		spaceID:  conf.Storyblok.SpaceID,
		cache:    ccache.New(ccache.Configure().MaxSize(64)),
		translit: transliterator.NewTransliterator(nil),
	}
}

func (c *Client) spacePath(suffix string) string {
	return fmt.Sprintf("/v1/spaces/%d/stories%s", c.spaceID, suffix)
}

// Slugify turns a story name into a storyblok-safe slug.
func (c *Client) Slugify(name string) string {
	ascii := c.translit.Transliterate(name, "en")
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(ascii) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteRune('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}
