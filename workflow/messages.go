package workflow

import "strings"

// Messages is the user-facing text of both workflows in one language
type Messages struct {
	EmbedProgress   string
	ExtractProgress string

	EmbedRequired   string
	ExtractRequired string

	// EmbedSuccess is a format string receiving the watermark length
	EmbedSuccess string

	UnknownError       string
	CommunicationError string
}

// English is the default catalog
var English = Messages{
	EmbedProgress:      "Embedding watermark, please wait...",
	ExtractProgress:    "Extracting watermark, please wait...",
	EmbedRequired:      "Please provide both an image and watermark text.",
	ExtractRequired:    "Please provide both an image and the watermark length.",
	EmbedSuccess:       "Success! To extract the watermark, use this length: %s",
	UnknownError:       "An unknown error occurred.",
	CommunicationError: "An error occurred while communicating with the server.",
}

// Chinese mirrors English for zh locales
var Chinese = Messages{
	EmbedProgress:      "正在嵌入水印，请稍候...",
	ExtractProgress:    "正在提取水印，请稍候...",
	EmbedRequired:      "请同时提供图片和水印文本。",
	ExtractRequired:    "请同时提供图片和水印长度。",
	EmbedSuccess:       "成功！提取水印时请使用此长度：%s",
	UnknownError:       "发生未知错误。",
	CommunicationError: "与服务器通信时发生错误。",
}

// Catalog returns the messages for a language tag such as "en" or "zh-CN"
func Catalog(lang string) Messages {
	if strings.HasPrefix(strings.ToLower(lang), "zh") {
		return Chinese
	}
	return English
}
