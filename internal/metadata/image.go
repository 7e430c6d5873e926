package metadata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"log/slog"
	"strconv"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/nao1215/harvester/internal/model"
)

// exifKeys maps the EXIF tags worth keeping to metadata keys.
var exifKeys = map[string]string{
	"Make":               "exif_make",
	"Model":              "exif_model",
	"LensModel":          "exif_lens_model",
	"Software":           "exif_software",
	"ProcessingSoftware": "exif_software",
	"DateTimeOriginal":   "exif_datetime_original",
	"DateTime":           "exif_datetime",
	"Artist":             "exif_artist",
	"Copyright":          "exif_copyright",
	"ImageDescription":   "exif_description",
	"HostComputer":       "exif_host_computer",
	"GPSLatitude":        "exif_gps_latitude",
	"GPSLatitudeRef":     "exif_gps_latitude_ref",
	"GPSLongitude":       "exif_gps_longitude",
	"GPSLongitudeRef":    "exif_gps_longitude_ref",
	"Orientation":        "exif_orientation",
}

// inspectImage records dimensions and EXIF tags. SVG and other formats
// without a registered decoder are skipped silently.
func (i *Inspector) inspectImage(ctx context.Context, item *model.ContentItem, body []byte) error {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(body))
	switch {
	case errors.Is(err, image.ErrFormat):
		return nil
	case err != nil:
		return fmt.Errorf("decode %s image header: %w", item.MimeType, err)
	}

	item.SetMetadata(KeyWidth, strconv.Itoa(cfg.Width))
	item.SetMetadata(KeyHeight, strconv.Itoa(cfg.Height))
	item.SetMetadata(KeyImageFormat, format)

	switch format {
	case "jpeg", "tiff", "webp":
		n := i.copyEXIF(item, body)
		if n > 0 {
			i.logger.DebugContext(ctx, "exif metadata found",
				slog.String("url", item.CanonicalURL),
				slog.Int("tags", n))
		}
	}
	return nil
}

// copyEXIF copies known EXIF tags into item and returns how many were set.
// Images without EXIF data are common and not an error.
func (i *Inspector) copyEXIF(item *model.ContentItem, body []byte) int {
	rawExif, err := exif.SearchAndExtractExif(body)
	if err != nil || rawExif == nil {
		return 0
	}
	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return 0
	}

	n := 0
	for _, entry := range entries {
		if n >= i.maxEXIFTags {
			break
		}
		key, ok := exifKeys[entry.TagName]
		if !ok {
			continue
		}
		value := strings.TrimSpace(strings.Trim(entry.Formatted, "\x00"))
		if value == "" {
			continue
		}
		if _, exists := item.Metadata[key]; exists {
			continue
		}
		item.SetMetadata(key, value)
		n++
	}
	return n
}
