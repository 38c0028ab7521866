package pdfexport

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// encryptDocument applies AES-256 encryption to a serialized document
// with the permission flags mapped onto the standard security handler.
func encryptDocument(data []byte, enc Encryption) ([]byte, error) {
	conf := model.NewAESConfiguration(enc.UserPassword, enc.OwnerPassword, 256)
	conf.Permissions = permissionBits(enc)

	var out bytes.Buffer
	if err := api.Encrypt(bytes.NewReader(data), &out, conf); err != nil {
		return nil, fmt.Errorf("failed to encrypt document: %w", err)
	}
	return out.Bytes(), nil
}

func permissionBits(enc Encryption) model.PermissionFlags {
	perms := model.PermissionsNone
	if enc.AllowPrinting {
		perms |= 1 << 2
	}
	if enc.AllowEditing {
		perms |= 1 << 3
	}
	if enc.AllowCopying {
		perms |= 1 << 4
	}
	if enc.AllowAnnotations {
		perms |= 1 << 5
	}
	return perms
}
