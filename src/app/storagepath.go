package app

import (
	"fmt"
	"path"
	"strings"
	"time"
)

const (
	// UploadsBucket is the object-storage bucket holding seller assets.
	UploadsBucket = "seller-uploads"

	prefixMarkerName = ".emptyFolderPlaceholder"
)

// UserPrefix is the key prefix under which an identity's objects live.
func UserPrefix(userID string) string {
	return userID + "/"
}

// PrefixMarker is the placeholder object the storage keeps for a non-empty prefix.
func PrefixMarker(userID string) string {
	return UserPrefix(userID) + prefixMarkerName
}

// StorageKeyFromURL returns the object key following "/<bucket>/" in an asset
// URL. ok is false for URLs that point outside the bucket.
func StorageKeyFromURL(assetURL, bucket string) (key string, ok bool) {
	marker := "/" + bucket + "/"
	idx := strings.Index(assetURL, marker)
	if idx == -1 {
		return "", false
	}
	key = assetURL[idx+len(marker):]
	if key == "" {
		return "", false
	}
	return key, true
}

// StorageKeys resolves every in-bucket asset of a listing.
func StorageKeys(listing Listing, bucket string) []string {
	keys := make([]string, 0, 4)
	for _, u := range listing.AssetURLs() {
		if key, ok := StorageKeyFromURL(u, bucket); ok {
			keys = append(keys, key)
		}
	}
	return keys
}

// ThumbnailPath is the key used for a listing thumbnail upload.
func ThumbnailPath(userID string, at time.Time) string {
	return fmt.Sprintf("%sthumbnails/%d.jpg", UserPrefix(userID), at.UnixMilli())
}

// AssetPath is the key used for the downloadable file of a listing.
func AssetPath(userID, fileName string, at time.Time) string {
	return fmt.Sprintf("%sproducts/%d-%s", UserPrefix(userID), at.UnixMilli(), path.Base(fileName))
}

// PublicURL builds the public object URL served by the backend.
func PublicURL(backendURL, bucket, key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", strings.TrimRight(backendURL, "/"), bucket, key)
}
