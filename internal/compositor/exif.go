package compositor

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"os"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	exifundefined "github.com/dsoprea/go-exif/v3/undefined"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
)

// exifDateFormat is the EXIF date-time layout.
const exifDateFormat = "2006:01:02 15:04:05"

// writeJPEG encodes img as JPEG, embeds the metadata and writes the file.
func writeJPEG(img image.Image, path string, meta Metadata) error {
	encoded := new(bytes.Buffer)
	if err := jpeg.Encode(encoded, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}

	tagged, err := embedMetadata(encoded.Bytes(), meta)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCompositeCreation, path, err)
	}

	if err := os.WriteFile(path, tagged, 0644); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}
	return nil
}

// embedMetadata rebuilds the JPEG's segment list with an EXIF block
// carrying the capture date, caption and GPS position.
func embedMetadata(jpegData []byte, meta Metadata) ([]byte, error) {
	jmp := jpegstructure.NewJpegMediaParser()
	intfc, err := jmp.ParseBytes(jpegData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse encoded jpeg: %w", err)
	}
	sl := intfc.(*jpegstructure.SegmentList)

	rootIb, err := sl.ConstructExifBuilder()
	if err != nil {
		im, err := exifcommon.NewIfdMappingWithStandard()
		if err != nil {
			return nil, fmt.Errorf("failed to create ifd mapping: %w", err)
		}
		rootIb = exif.NewIfdBuilder(im, exif.NewTagIndex(),
			exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder)
	}

	dateString := meta.Date.Format(exifDateFormat)

	ifdIb, err := exif.GetOrCreateIbFromRootIb(rootIb, "IFD0")
	if err != nil {
		return nil, fmt.Errorf("failed to get root ifd: %w", err)
	}
	if err := ifdIb.SetStandardWithName("DateTime", dateString); err != nil {
		return nil, err
	}

	exifIb, err := exif.GetOrCreateIbFromRootIb(rootIb, "IFD0/Exif")
	if err != nil {
		return nil, fmt.Errorf("failed to get exif ifd: %w", err)
	}
	if err := exifIb.SetStandardWithName("DateTimeOriginal", dateString); err != nil {
		return nil, err
	}
	if err := exifIb.SetStandardWithName("DateTimeDigitized", dateString); err != nil {
		return nil, err
	}

	if meta.Caption != "" {
		comment := exifundefined.Tag9286UserComment{
			EncodingType:  exifundefined.TagUndefinedType_9298_UserComment_Encoding_ASCII,
			EncodingBytes: []byte(meta.Caption),
		}
		if err := exifIb.SetStandardWithName("UserComment", comment); err != nil {
			return nil, err
		}
		if err := ifdIb.SetStandardWithName("ImageDescription", meta.Caption); err != nil {
			return nil, err
		}
	}

	if meta.Location != nil {
		if err := setGPS(rootIb, meta.Location.Latitude, meta.Location.Longitude); err != nil {
			return nil, err
		}
	}

	if err := sl.SetExif(rootIb); err != nil {
		return nil, fmt.Errorf("failed to set exif segment: %w", err)
	}

	out := new(bytes.Buffer)
	if err := sl.Write(out); err != nil {
		return nil, fmt.Errorf("failed to rebuild jpeg: %w", err)
	}
	return out.Bytes(), nil
}

func setGPS(rootIb *exif.IfdBuilder, latitude, longitude float64) error {
	gpsIb, err := exif.GetOrCreateIbFromRootIb(rootIb, "IFD0/GPSInfo")
	if err != nil {
		return fmt.Errorf("failed to get gps ifd: %w", err)
	}

	latRef := "N"
	if latitude < 0 {
		latRef = "S"
	}
	lonRef := "E"
	if longitude < 0 {
		lonRef = "W"
	}

	if err := gpsIb.SetStandardWithName("GPSLatitudeRef", latRef); err != nil {
		return err
	}
	if err := gpsIb.SetStandardWithName("GPSLatitude", degreesToRationals(math.Abs(latitude))); err != nil {
		return err
	}
	if err := gpsIb.SetStandardWithName("GPSLongitudeRef", lonRef); err != nil {
		return err
	}
	return gpsIb.SetStandardWithName("GPSLongitude", degreesToRationals(math.Abs(longitude)))
}

// degreesToRationals converts decimal degrees to EXIF degree/minute/second
// rationals, with seconds carried at 1/100 precision.
func degreesToRationals(value float64) []exifcommon.Rational {
	degrees := math.Floor(value)
	minutes := math.Floor((value - degrees) * 60)
	seconds := (value - degrees - minutes/60) * 3600

	return []exifcommon.Rational{
		{Numerator: uint32(degrees), Denominator: 1},
		{Numerator: uint32(minutes), Denominator: 1},
		{Numerator: uint32(math.Round(seconds * 100)), Denominator: 100},
	}
}
