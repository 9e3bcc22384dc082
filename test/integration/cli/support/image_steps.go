package support

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/barcodekit/internal/barcode"
	"github.com/MeKo-Tech/barcodekit/internal/testutil"
)

func (testCtx *TestContext) readScenarioFile(name string) ([]byte, error) {
	path := testCtx.resolvePath(name)
	data, err := os.ReadFile(path) //nolint:gosec // G304: scenario controlled path
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// aBarcodeImage renders a barcode fixture into the scenario directory.
func (testCtx *TestContext) aBarcodeImage(formatName, name, text string) error {
	f, ok := barcode.ParseFormat(formatName)
	if !ok {
		return fmt.Errorf("unknown barcode format %q", formatName)
	}
	path := testCtx.TempPath(name)
	if err := testutil.WriteBarcodePNG(path, text, f); err != nil {
		return fmt.Errorf("failed to write barcode fixture: %w", err)
	}
	return nil
}

// aBlankImage writes a white image without any symbol.
func (testCtx *TestContext) aBlankImage(name string) error {
	path := testCtx.TempPath(name)
	if err := testutil.WritePNG(path, testutil.BlankImage(160, 160, color.White)); err != nil {
		return fmt.Errorf("failed to write blank fixture: %w", err)
	}
	return nil
}

// aFrameDirectoryWithCodes writes one QR frame per table row, with a blank
// frame wherever the text is empty. Files sort in row order.
func (testCtx *TestContext) aFrameDirectoryWithCodes(dir string, table *godog.Table) error {
	root := testCtx.TempPath(dir)
	if err := testutil.EnsureDir(root); err != nil {
		return err
	}

	for i, row := range table.Rows {
		if len(row.Cells) == 0 {
			continue
		}
		text := row.Cells[0].Value
		if i == 0 && text == "text" {
			continue
		}
		path := filepath.Join(root, fmt.Sprintf("frame-%03d.png", i))
		var err error
		if text == "" || text == "-" {
			err = testutil.WritePNG(path, testutil.BlankImage(160, 160, color.White))
		} else {
			err = testutil.WriteBarcodePNG(path, text, barcode.FormatQR)
		}
		if err != nil {
			return fmt.Errorf("failed to write frame %d: %w", i, err)
		}
	}
	return nil
}

// aTextFile writes a non-image file.
func (testCtx *TestContext) aTextFile(name, content string) error {
	path := testCtx.TempPath(name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return err
	}
	return nil
}

// theImageShouldDecodeTo decodes an image file written by a command.
func (testCtx *TestContext) theImageShouldDecodeTo(name, text string) error {
	img, err := testutil.LoadImageFile(testCtx.resolvePath(name))
	if err != nil {
		return err
	}
	res, err := testutil.DecodeFirst(img)
	if err != nil {
		return fmt.Errorf("image %s did not decode: %w", name, err)
	}
	if res.Value != text {
		return fmt.Errorf("image %s decoded to %q, want %q", name, res.Value, text)
	}
	return nil
}

// theImageShouldMeasure checks pixel dimensions of an image file.
func (testCtx *TestContext) theImageShouldMeasure(name string, width, height int) error {
	img, err := testutil.LoadImageFile(testCtx.resolvePath(name))
	if err != nil {
		return err
	}
	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		return fmt.Errorf("image %s is %dx%d, want %dx%d", name, b.Dx(), b.Dy(), width, height)
	}
	return nil
}

// RegisterImageSteps registers fixture and image assertion steps.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a "([^"]*)" barcode image "([^"]*)" encoding "([^"]*)"$`, testCtx.aBarcodeImage)
	sc.Step(`^a blank image "([^"]*)"$`, testCtx.aBlankImage)
	sc.Step(`^a frame directory "([^"]*)" with codes:$`, testCtx.aFrameDirectoryWithCodes)
	sc.Step(`^a text file "([^"]*)" containing "([^"]*)"$`, testCtx.aTextFile)
	sc.Step(`^the image "([^"]*)" should decode to "([^"]*)"$`, testCtx.theImageShouldDecodeTo)
	sc.Step(`^the image "([^"]*)" should be (\d+)x(\d+) pixels$`, testCtx.theImageShouldMeasure)
}
