package render

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// AnchorCell is where the chart image is placed on the active sheet.
const AnchorCell = "E5"

// EmbedImage reopens the workbook, places the PNG at AnchorCell on its
// active sheet and returns the re-serialized workbook. The input slice is
// not modified.
func EmbedImage(workbook, png []byte) ([]byte, error) {
	f, err := excelize.OpenReader(bytes.NewReader(workbook))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	defer f.Close()

	sheet := activeSheet(f)
	if sheet == "" {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrUnsupportedFormat)
	}
	err = f.AddPictureFromBytes(sheet, AnchorCell, &excelize.Picture{
		Extension: ".png",
		File:      png,
		Format: &excelize.GraphicOptions{
			AltText: "chart",
			ScaleX:  1,
			ScaleY:  1,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: embed image: %v", ErrRender, err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: write workbook: %v", ErrRender, err)
	}
	return buf.Bytes(), nil
}
