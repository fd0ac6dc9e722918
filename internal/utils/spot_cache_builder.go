package utils

import (
	"strconv"
	"strings"
)

const SpotsListCachePrefix = "spots:list:v1:"

func BuildSpotsListCacheKey(limit, offset int, query, createdBy *string) string {
	q := ""
	if query != nil {
		q = strings.ToLower(strings.TrimSpace(*query))
	}
	by := ""
	if createdBy != nil {
		by = *createdBy
	}

	return SpotsListCachePrefix +
		"limit=" + strconv.Itoa(limit) +
		":offset=" + strconv.Itoa(offset) +
		":q=" + q +
		":by=" + by
}
