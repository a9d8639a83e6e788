// Package classify maps a raw URL to a {source, content type} tag.
//
// Classification is pure: it never performs I/O and never fails. A URL that
// matches nothing comes back as unknown so the caller decides whether the
// generic scraper applies.
package classify

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/clipflow/clipflow/internal/core/domain"
)

// Classification is the first-pass tag of a URL.
type Classification struct {
	URL         string             `json:"url"`
	Source      domain.Source      `json:"source"`
	ContentType domain.ContentType `json:"content_type"`
}

type pattern struct {
	source      domain.Source
	contentType domain.ContentType
	hosts       []string
	path        *regexp.Regexp // nil means any path on a matching host
}

// Social sources are tried before video sources so that e.g. a bilibili
// opus (social post) host rule can shadow the video rule later in the table.
var patterns = []pattern{
	{domain.SourceTwitter, domain.ContentTypeSocialMedia, []string{"twitter.com", "x.com", "mobile.twitter.com", "vxtwitter.com", "fxtwitter.com"}, regexp.MustCompile(`/[^/]+/status/\d+`)},
	{domain.SourceWeibo, domain.ContentTypeSocialMedia, []string{"weibo.com", "m.weibo.cn", "weibo.cn"}, nil},
	{domain.SourceZhihu, domain.ContentTypeSocialMedia, []string{"zhihu.com", "www.zhihu.com", "zhuanlan.zhihu.com"}, nil},
	{domain.SourceDouban, domain.ContentTypeSocialMedia, []string{"douban.com", "www.douban.com", "m.douban.com"}, nil},
	{domain.SourceThreads, domain.ContentTypeSocialMedia, []string{"threads.net", "www.threads.net", "threads.com", "www.threads.com"}, nil},
	{domain.SourceInstagram, domain.ContentTypeSocialMedia, []string{"instagram.com", "www.instagram.com"}, regexp.MustCompile(`/(p|reel|tv)/`)},
	{domain.SourceReddit, domain.ContentTypeSocialMedia, []string{"reddit.com", "www.reddit.com", "old.reddit.com", "redd.it"}, nil},
	{domain.SourceBluesky, domain.ContentTypeSocialMedia, []string{"bsky.app", "staging.bsky.app"}, regexp.MustCompile(`/profile/[^/]+/post/`)},
	{domain.SourceWechat, domain.ContentTypeArticle, []string{"mp.weixin.qq.com"}, nil},
	{domain.SourceXiaohongshu, domain.ContentTypeSocialMedia, []string{"xiaohongshu.com", "www.xiaohongshu.com", "xhslink.com"}, nil},
	{domain.SourceYoutube, domain.ContentTypeVideo, []string{"youtube.com", "www.youtube.com", "m.youtube.com", "youtu.be"}, nil},
	{domain.SourceBilibili, domain.ContentTypeVideo, []string{"bilibili.com", "www.bilibili.com", "m.bilibili.com", "b23.tv"}, nil},
}

// banGroups expands the category tokens accepted in ban lists.
var banGroups = map[string][]domain.Source{
	"social_media": {
		domain.SourceTwitter, domain.SourceWeibo, domain.SourceZhihu,
		domain.SourceDouban, domain.SourceThreads, domain.SourceInstagram,
		domain.SourceReddit, domain.SourceBluesky, domain.SourceWechat,
		domain.SourceXiaohongshu,
	},
	"video": {domain.SourceYoutube, domain.SourceBilibili},
}

// Classify tags a URL. The ban list holds source names plus the expansion
// tokens "social_media" and "video"; a banned match is terminal.
func Classify(rawURL string, banList []string) Classification {
	normalized, host, path := normalize(rawURL)

	result := Classification{URL: normalized, Source: domain.SourceUnknown, ContentType: domain.ContentTypeUnknown}
	if host == "" {
		return result
	}

	banned := ExpandBanList(banList)

	for _, p := range patterns {
		if !p.matches(host, path) {
			continue
		}

		if banned[p.source] {
			result.Source = domain.SourceBanned
			return result
		}

		result.Source = p.source
		result.ContentType = p.contentType

		return result
	}

	return result
}

// ExpandBanList resolves group tokens into the banned source set.
func ExpandBanList(banList []string) map[domain.Source]bool {
	banned := make(map[domain.Source]bool, len(banList))

	for _, entry := range banList {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}

		if group, ok := banGroups[entry]; ok {
			for _, s := range group {
				banned[s] = true
			}

			continue
		}

		banned[domain.Source(entry)] = true
	}

	return banned
}

func (p pattern) matches(host, path string) bool {
	for _, h := range p.hosts {
		if host != h && !strings.HasSuffix(host, "."+h) {
			continue
		}

		if p.path == nil || p.path.MatchString(path) {
			return true
		}
	}

	return false
}

// normalize strips the fragment and lowercases the host. An unparseable URL
// yields an empty host and therefore an unknown classification.
func normalize(rawURL string) (normalized, host, path string) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return rawURL, "", ""
	}

	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)

	return u.String(), u.Host, u.Path
}
