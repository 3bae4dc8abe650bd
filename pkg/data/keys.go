package data

import (
	"strconv"
	"strings"
)

const (
	keySeparator = "_"
	pageInfix    = "_page_"
)

// ChapterKey is the chapters partition key for a chapter.
func ChapterKey(mangaID, chapterID string) string {
	return mangaID + keySeparator + chapterID
}

// ImagePrefix is the key prefix shared by every page blob of a chapter.
func ImagePrefix(mangaID, chapterID string) string {
	return ChapterKey(mangaID, chapterID) + pageInfix
}

// ImageKey is the images partition key for the page at position index.
func ImageKey(mangaID, chapterID string, index int) string {
	return ImagePrefix(mangaID, chapterID) + strconv.Itoa(index)
}

// SplitChapterKey splits a chapters partition key back into its ids.
func SplitChapterKey(key string) (mangaID, chapterID string, ok bool) {
	mangaID, chapterID, ok = strings.Cut(key, keySeparator)
	if !ok || mangaID == "" || chapterID == "" {
		return "", "", false
	}
	return mangaID, chapterID, true
}

// ParentChapterKey returns the chapter key an image key belongs to.
func ParentChapterKey(imageKey string) (string, bool) {
	i := strings.LastIndex(imageKey, pageInfix)
	if i <= 0 {
		return "", false
	}
	if _, err := strconv.Atoi(imageKey[i+len(pageInfix):]); err != nil {
		return "", false
	}
	return imageKey[:i], true
}
