package repository

import (
	"fmt"

	"github.com/lyzr/adstudio/cmd/adstudio/models"
)

func adMetaKey(adID string) string {
	return fmt.Sprintf("ad:%s:meta", adID)
}

func streamKey(adID string, stream models.StreamType, suffix string) string {
	return fmt.Sprintf("ad:%s:%s:%s", adID, stream, suffix)
}

func versionKey(adID string, stream models.StreamType, versionID string) string {
	return fmt.Sprintf("ad:%s:%s:version:%s", adID, stream, versionID)
}

func mixerKey(adID string) string {
	return fmt.Sprintf("ad:%s:mixer", adID)
}

func streamLockKey(adID string, stream models.StreamType) string {
	return fmt.Sprintf("lock:ad:%s:%s", adID, stream)
}

func mixerLockKey(adID string) string {
	return fmt.Sprintf("lock:ad:%s:mixer", adID)
}
