package dom

import "iter"

// Documents walks the frame tree rooted at root depth-first, yielding every
// accessible document with its frame depth (0 for root). A frame whose
// document cannot be read is skipped together with its subtree; failures
// never end the walk.
//
// The sequence is lazy and can be ranged over more than once.
func Documents(root Frame) iter.Seq2[int, Document] {
	return func(yield func(int, Document) bool) {
		if root == nil {
			return
		}
		walk(root, 0, yield)
	}
}

// walk returns false once the consumer has stopped iterating
func walk(f Frame, depth int, yield func(int, Document) bool) bool {
	doc, err := f.Document()
	if err != nil || doc == nil {
		return true
	}
	if !yield(depth, doc) {
		return false
	}

	children, err := f.Frames()
	if err != nil {
		return true
	}
	for _, child := range children {
		if child == nil {
			continue
		}
		if !walk(child, depth+1, yield) {
			return false
		}
	}
	return true
}

// FirstMedia returns the first media element matching selector anywhere in
// the frame tree, and the depth of the frame it was found in.
func FirstMedia(root Frame, selector string) (Media, int) {
	for depth, doc := range Documents(root) {
		found, err := doc.QueryMedia(selector)
		if err != nil || len(found) == 0 {
			continue
		}
		return found[0], depth
	}
	return nil, -1
}

// AllMedia returns every media element matching selector in every
// accessible frame, in walk order.
func AllMedia(root Frame, selector string) []Media {
	var all []Media
	for _, doc := range Documents(root) {
		found, err := doc.QueryMedia(selector)
		if err != nil {
			continue
		}
		all = append(all, found...)
	}
	return all
}
