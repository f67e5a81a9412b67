// Package controllers implements the handlers of the operations router.
package controllers

import "gorm.io/gorm"

type Controller struct {
	DB *gorm.DB
}
