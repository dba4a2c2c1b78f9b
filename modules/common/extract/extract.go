package extract

import (
	"regexp"
	"sort"
	"strings"
)

// Upstream automation pipelines are black boxes whose output shape drifts.
// Everything in this package is a best-effort probe over decoded JSON: no
// match yields an empty result, never an error. Key priorities are
// case-sensitive on purpose (imageURLs before imageUrls) because the
// upstreams are inconsistent by observation.

var urlPattern = regexp.MustCompile(`https?://[^\s"]+`)

// imageKeys - array-valued properties that may carry image URLs, in priority order.
var imageKeys = []string{"imageURLs", "imageUrls", "urls", "images"}

// promptKeys - string properties that may carry the enhanced prompt, in priority order.
var promptKeys = []string{"enhancedPrompt", "enhanced_prompt", "prompt", "output"}

// videoKeys - string properties that may carry a video URL, in priority order.
var videoKeys = []string{"url", "videoURL", "videoUrl", "video"}

// urlPairKeys - paired single-URL properties checked when no array property matches.
var urlPairKeys = [][2]string{
	{"imageURL1", "imageURL2"},
	{"url1", "url2"},
	{"image1", "image2"},
	{"imageUrl1", "imageUrl2"},
	{"image_url_1", "image_url_2"},
	{"image_1", "image_2"},
}

// arrayProps - array properties probed as a last structured resort for two URLs.
var arrayProps = []string{"imageURLs", "results", "output", "images", "urls", "imageUrls"}

// fallbackPromptKeys - loose text properties accepted as a prompt when long enough.
var fallbackPromptKeys = []string{"description", "text", "content", "caption", "message"}

// ImageURLs extracts every image URL it can find under the known property
// names. Resolution is first-match-wins: bare string array, array first item,
// direct object. No deep search here.
func ImageURLs(data interface{}) []string {
	switch v := data.(type) {
	case []interface{}:
		if len(v) == 0 {
			return []string{}
		}
		if _, ok := v[0].(string); ok {
			return stringItems(v)
		}
		if first, ok := v[0].(map[string]interface{}); ok {
			if urls := arrayProp(first, imageKeys); urls != nil {
				return urls
			}
		}
		if nested, ok := v[0].([]interface{}); ok {
			if items := stringItems(nested); len(items) == len(nested) {
				return items
			}
		}
	case map[string]interface{}:
		if urls := arrayProp(v, imageKeys); urls != nil {
			return urls
		}
	}
	return []string{}
}

// TwoURLsAndPrompt extracts at most two image URLs plus an enhanced prompt.
// The image generation contract caps output at two images, so every matched
// array is truncated. Falls back to a recursive walk of the whole payload
// when structured probing finds fewer than two URLs. An empty prompt means
// none was found.
func TwoURLsAndPrompt(data interface{}) ([]string, string) {
	imageUrls := []string{}
	enhancedPrompt := ""

	// Case 1: array response, probe the first item
	if arr, ok := data.([]interface{}); ok && len(arr) > 0 {
		if first, ok := arr[0].(map[string]interface{}); ok {
			enhancedPrompt = stringProp(first, promptKeys)
			if urls := arrayProp(first, imageKeys); urls != nil {
				imageUrls = truncate(urls, 2)
			}
			if len(imageUrls) > 0 {
				return imageUrls, enhancedPrompt
			}
		}

		// The array itself may hold the two URLs as strings
		if len(arr) >= 2 {
			first, ok1 := arr[0].(string)
			second, ok2 := arr[1].(string)
			if ok1 && ok2 {
				return []string{first, second}, enhancedPrompt
			}
		}
	}

	// Case 2: object response
	if obj, ok := data.(map[string]interface{}); ok {
		enhancedPrompt = stringProp(obj, promptKeys)

		if urls := arrayProp(obj, imageKeys); urls != nil {
			imageUrls = truncate(urls, 2)
		}

		// url1/url2 style paired properties
		if len(imageUrls) == 0 {
			for _, pair := range urlPairKeys {
				first, ok1 := obj[pair[0]].(string)
				second, ok2 := obj[pair[1]].(string)
				if ok1 && ok2 && first != "" && second != "" {
					imageUrls = []string{first, second}
					break
				}
			}
		}

		// results/output style array properties holding at least two strings
		if len(imageUrls) == 0 {
			for _, prop := range arrayProps {
				arr, ok := obj[prop].([]interface{})
				if !ok || len(arr) < 2 {
					continue
				}
				first, ok1 := arr[0].(string)
				second, ok2 := arr[1].(string)
				if ok1 && ok2 {
					imageUrls = []string{first, second}
					break
				}
			}
		}
	}

	// Case 3: deep search over the entire payload for anything URL-shaped
	if len(imageUrls) < 2 {
		all := deepURLs(data)
		if len(all) >= 2 {
			imageUrls = all[:2]
		}
	}

	// Last-resort prompt: any long enough loose text property
	if enhancedPrompt == "" {
		if obj, ok := data.(map[string]interface{}); ok {
			for _, prop := range fallbackPromptKeys {
				if s, ok := obj[prop].(string); ok && len(s) > 20 {
					enhancedPrompt = s
					break
				}
			}
		}
	}

	return imageUrls, enhancedPrompt
}

// VideoURL extracts a single playable URL. Video payloads are expected to be
// shallow, so there is no deep search. Returns "" when nothing matches.
func VideoURL(data interface{}) string {
	switch v := data.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		if strings.HasPrefix(trimmed, "http") {
			return trimmed
		}
	case []interface{}:
		if len(v) > 0 {
			if first, ok := v[0].(map[string]interface{}); ok {
				return stringProp(first, videoKeys)
			}
		}
	case map[string]interface{}:
		return stringProp(v, videoKeys)
	}
	return ""
}

// EnhancedPrompt extracts a human-readable prompt string from a response.
// A bare string payload is returned as-is.
func EnhancedPrompt(data interface{}) string {
	switch v := data.(type) {
	case string:
		return v
	case []interface{}:
		if len(v) > 0 {
			if first, ok := v[0].(map[string]interface{}); ok {
				return stringProp(first, promptKeys)
			}
		}
	case map[string]interface{}:
		return stringProp(v, promptKeys)
	}
	return ""
}

// URLsFromText scans raw text for URLs. Regex fallback for when the body is
// not valid JSON at all. Returns at most the first two matches.
func URLsFromText(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	if matches == nil {
		return []string{}
	}
	return truncate(matches, 2)
}

// stringItems collects the string elements of a decoded array.
func stringItems(arr []interface{}) []string {
	items := []string{}
	for _, item := range arr {
		if s, ok := item.(string); ok {
			items = append(items, s)
		}
	}
	return items
}

// arrayProp returns the string contents of the first key holding an array,
// or nil when none of the keys match.
func arrayProp(obj map[string]interface{}, keys []string) []string {
	for _, key := range keys {
		if arr, ok := obj[key].([]interface{}); ok {
			return stringItems(arr)
		}
	}
	return nil
}

// stringProp returns the first non-empty string value among the keys.
func stringProp(obj map[string]interface{}, keys []string) string {
	for _, key := range keys {
		if s, ok := obj[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// truncate caps a string slice at n elements.
func truncate(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// deepURLs recursively walks arrays, objects and their values collecting
// every string that looks like an absolute URL. An imageURLs property met
// during the walk contributes its contents first, but the walk still
// continues into sibling keys. Map keys are visited in sorted order so
// results are deterministic.
func deepURLs(data interface{}) []string {
	found := []string{}

	var walk func(v interface{})
	walk = func(v interface{}) {
		switch node := v.(type) {
		case string:
			if strings.HasPrefix(node, "http://") || strings.HasPrefix(node, "https://") {
				found = append(found, node)
			}
		case []interface{}:
			for _, item := range node {
				walk(item)
			}
		case map[string]interface{}:
			if arr, ok := node["imageURLs"].([]interface{}); ok {
				for _, item := range arr {
					if s, ok := item.(string); ok &&
						(strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")) {
						found = append(found, s)
					}
				}
			}

			keys := make([]string, 0, len(node))
			for key := range node {
				if key != "imageURLs" {
					keys = append(keys, key)
				}
			}
			sort.Strings(keys)
			for _, key := range keys {
				walk(node[key])
			}
		}
	}

	walk(data)
	return found
}
