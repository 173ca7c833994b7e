package s3

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/scttfrdmn/cargoship/pkg/aws/config"
)

// S3 Storage Tier Constants
const (
	TierStandard          = "STANDARD"
	TierStandardIA        = "STANDARD_IA"
	TierOneZoneIA         = "ONEZONE_IA"
	TierReducedRedundancy = "REDUCED_REDUNDANCY"
	TierGlacierIR         = "GLACIER_IR"
	TierGlacier           = "GLACIER"
	TierDeepArchive       = "DEEP_ARCHIVE"
	TierIntelligent       = "INTELLIGENT_TIERING"
)

var tierNames = []string{
	TierStandard,
	TierStandardIA,
	TierOneZoneIA,
	TierReducedRedundancy,
	TierGlacierIR,
	TierGlacier,
	TierDeepArchive,
	TierIntelligent,
}

// Tiers lists the supported storage tiers.
func Tiers() []string {
	out := make([]string, len(tierNames))
	copy(out, tierNames)
	return out
}

// IsValidTier reports whether tier names a supported storage tier.
func IsValidTier(tier string) bool {
	for _, name := range tierNames {
		if strings.EqualFold(tier, name) {
			return true
		}
	}
	return false
}

// storageClassFor maps tier to the storage class of an upload. Folder
// markers always use STANDARD.
func storageClassFor(tier string, marker bool) types.StorageClass {
	if marker {
		return types.StorageClassStandard
	}
	switch strings.ToUpper(tier) {
	case TierStandardIA:
		return types.StorageClassStandardIa
	case TierOneZoneIA:
		return types.StorageClassOnezoneIa
	case TierReducedRedundancy:
		return types.StorageClassReducedRedundancy
	case TierGlacierIR:
		return types.StorageClassGlacierIr
	case TierGlacier:
		return types.StorageClassGlacier
	case TierDeepArchive:
		return types.StorageClassDeepArchive
	case TierIntelligent:
		return types.StorageClassIntelligentTiering
	default:
		return types.StorageClassStandard
	}
}

func cargoShipStorageClass(tier string) config.StorageClass {
	switch strings.ToUpper(tier) {
	case TierStandardIA:
		return config.StorageClassStandardIA
	case TierOneZoneIA:
		return config.StorageClassOneZoneIA
	case TierGlacierIR, TierGlacier:
		return config.StorageClassGlacier
	case TierDeepArchive:
		return config.StorageClassDeepArchive
	case TierIntelligent:
		return config.StorageClassIntelligentTiering
	default:
		return config.StorageClassStandard
	}
}
