package entity

import "image"

// CropRect прямоугольник обрезки по ткани в координатах исходного снимка
type CropRect struct {
	X      int `json:"x"`      // координата X левого верхнего угла
	Y      int `json:"y"`      // координата Y левого верхнего угла
	Width  int `json:"width"`  // ширина в пикселях
	Height int `json:"height"` // высота в пикселях
}

// FullFrame возвращает обрезку, совпадающую со всем изображением
func FullFrame(width, height int) CropRect {
	return CropRect{Width: width, Height: height}
}

// Rect переводит обрезку в image.Rectangle
func (c CropRect) Rect() image.Rectangle {
	return image.Rect(c.X, c.Y, c.X+c.Width, c.Y+c.Height)
}

// Within проверяет, что обрезка целиком лежит внутри изображения width×height
func (c CropRect) Within(width, height int) bool {
	return c.X >= 0 && c.Y >= 0 && c.Width >= 0 && c.Height >= 0 &&
		c.X+c.Width <= width && c.Y+c.Height <= height
}

// BoundingBox подозрительная область в координатах входа классификатора
// (того же кадра, что и тепловая карта), а не исходного снимка.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center возвращает координаты центра области
func (b BoundingBox) Center() (x, y int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Area площадь области в пикселях
func (b BoundingBox) Area() int {
	return b.Width * b.Height
}

// Rect переводит область в image.Rectangle
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Within проверяет, что область лежит внутри кадра size×size
func (b BoundingBox) Within(size int) bool {
	return b.X >= 0 && b.Y >= 0 && b.Width >= 0 && b.Height >= 0 &&
		b.X+b.Width <= size && b.Y+b.Height <= size
}
