package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	pdf "github.com/ledongthuc/pdf"

	"docwallet/internal/wallet"
)

var kindsByExtension = map[string]wallet.FileKind{
	".jpg":  wallet.KindImage,
	".jpeg": wallet.KindImage,
	".png":  wallet.KindImage,
	".gif":  wallet.KindImage,
	".webp": wallet.KindImage,
	".heic": wallet.KindImage,
	".bmp":  wallet.KindImage,
	".pdf":  wallet.KindPDF,
	".doc":  wallet.KindOffice,
	".docx": wallet.KindOffice,
	".xls":  wallet.KindOffice,
	".xlsx": wallet.KindOffice,
	".ppt":  wallet.KindOffice,
	".pptx": wallet.KindOffice,
	".odt":  wallet.KindOffice,
	".ods":  wallet.KindOffice,
}

// KindOf classifies path by its extension.
func KindOf(path string) wallet.FileKind {
	if kind, ok := kindsByExtension[strings.ToLower(filepath.Ext(path))]; ok {
		return kind
	}
	return wallet.KindOther
}

// CountPDFPages returns the number of pages of the PDF at path.
func CountPDFPages(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat pdf: %w", err)
	}

	doc, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return 0, fmt.Errorf("parsing pdf: %w", err)
	}
	return doc.NumPage(), nil
}
