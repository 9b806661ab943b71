package ocr

// Confidence returns the mean word confidence over the pages → blocks →
// lines → words hierarchy of exported structured data. A missing or
// malformed level anywhere yields 0, as does a tree with no words.
func Confidence(data map[string]any) float64 {
	sum, count, ok := sumPages(data)
	if !ok || count == 0 {
		return 0
	}
	return sum / float64(count)
}

func sumPages(data map[string]any) (float64, int, bool) {
	pages, ok := listAt(data, "pages")
	if !ok {
		return 0, 0, false
	}

	var sum float64
	var count int
	for _, p := range pages {
		page, ok := p.(map[string]any)
		if !ok {
			return 0, 0, false
		}
		blocks, ok := listAt(page, "blocks")
		if !ok {
			return 0, 0, false
		}
		for _, b := range blocks {
			s, n, ok := sumBlock(b)
			if !ok {
				return 0, 0, false
			}
			sum += s
			count += n
		}
	}
	return sum, count, true
}

func sumBlock(b any) (float64, int, bool) {
	block, ok := b.(map[string]any)
	if !ok {
		return 0, 0, false
	}
	lines, ok := listAt(block, "lines")
	if !ok {
		return 0, 0, false
	}

	var sum float64
	var count int
	for _, l := range lines {
		line, ok := l.(map[string]any)
		if !ok {
			return 0, 0, false
		}
		words, ok := listAt(line, "words")
		if !ok {
			return 0, 0, false
		}
		for _, w := range words {
			word, ok := w.(map[string]any)
			if !ok {
				return 0, 0, false
			}
			c, ok := numberAt(word, "confidence")
			if !ok {
				return 0, 0, false
			}
			sum += c
			count++
		}
	}
	return sum, count, true
}

func listAt(m map[string]any, key string) ([]any, bool) {
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	switch list := v.(type) {
	case []any:
		return list, true
	case []map[string]any:
		out := make([]any, len(list))
		for i := range list {
			out[i] = list[i]
		}
		return out, true
	default:
		return nil, false
	}
}

func numberAt(m map[string]any, key string) (float64, bool) {
	switch n := m[key].(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// PageCount returns the number of pages in exported structured data, or 0
// when the pages level is missing.
func PageCount(data map[string]any) int {
	pages, ok := listAt(data, "pages")
	if !ok {
		return 0
	}
	return len(pages)
}
