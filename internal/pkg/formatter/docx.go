package formatter

import (
	"bytes"
	"fmt"

	"github.com/unidoc/unioffice/document"
)

const (
	docxContentType   = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	docxFileExtension = ".docx"
)

type DOCXFormatter struct{}

func NewDOCXFormatter() *DOCXFormatter {
	return &DOCXFormatter{}
}

func (df *DOCXFormatter) Format(t Transcript) ([]byte, error) {
	doc := document.New()
	defer doc.Close()

	title := doc.AddParagraph()
	title.SetStyle("Heading1")
	title.AddRun().AddText(baseTitle)
	doc.AddParagraph().AddRun().AddText(header(t))

	for i, turn := range t.Turns {
		heading := doc.AddParagraph()
		heading.SetStyle("Heading2")
		heading.AddRun().AddText(fmt.Sprintf("%d. %s", i+1, turnMeta(turn)))

		user := doc.AddParagraph()
		label := user.AddRun()
		label.Properties().SetBold(true)
		label.AddText("User: ")
		user.AddRun().AddText(turn.UserInput)

		answer := doc.AddParagraph()
		label = answer.AddRun()
		label.Properties().SetBold(true)
		label.AddText("Assistant: ")
		answer.AddRun().AddText(turn.Response)
	}

	var buf bytes.Buffer
	if err := doc.Save(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (df *DOCXFormatter) ContentType() string {
	return docxContentType
}

func (df *DOCXFormatter) FileExtension() string {
	return docxFileExtension
}
