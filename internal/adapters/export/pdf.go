package export

import (
	"bytes"
	"fmt"
	"unicode/utf16"
)

// buildPDF writes a single-page PDF 1.4 document. Text is encoded UTF-16BE
// against a non-embedded KozMin CID font so Japanese renders in standard
// viewers without shipping font data.
func buildPDF(lines []string) ([]byte, error) {
	var content bytes.Buffer
	content.WriteString("BT\n/F1 11 Tf\n14 TL\n50 792 Td\n")
	for _, line := range lines {
		content.WriteString(fmt.Sprintf("<%s> Tj\nT*\n", utf16Hex(line)))
	}
	content.WriteString("ET\n")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Resources << /Font << /F1 4 0 R >> >> /Contents 6 0 R >>",
		"<< /Type /Font /Subtype /Type0 /BaseFont /KozMinPro-Regular /Encoding /UniJIS-UCS2-H /DescendantFonts [5 0 R] >>",
		"<< /Type /Font /Subtype /CIDFontType0 /BaseFont /KozMinPro-Regular /CIDSystemInfo << /Registry (Adobe) /Ordering (Japan1) /Supplement 6 >> /DW 1000 >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects)+1)
	for i, object := range objects {
		offsets[i+1] = buf.Len()
		buf.WriteString(fmt.Sprintf("%d 0 obj\n%s\nendobj\n", i+1, object))
	}

	xrefOffset := buf.Len()
	buf.WriteString(fmt.Sprintf("xref\n0 %d\n0000000000 65535 f \n", len(objects)+1))
	for i := 1; i <= len(objects); i++ {
		buf.WriteString(fmt.Sprintf("%010d 00000 n \n", offsets[i]))
	}
	buf.WriteString(fmt.Sprintf("trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1, xrefOffset))

	return buf.Bytes(), nil
}

// utf16Hex encodes text as a big-endian UTF-16 hex string with BOM, the form
// PDF expects inside <...> string literals under a UCS-2 encoding.
func utf16Hex(text string) string {
	var sb bytes.Buffer
	sb.WriteString("FEFF")
	for _, unit := range utf16.Encode([]rune(text)) {
		sb.WriteString(fmt.Sprintf("%04X", unit))
	}
	return sb.String()
}
