package keyscan

// DetectEncryption routes classified bytes to the format's decoder. Each
// decoder is a pure function over the file content; none of them can reach
// for a passphrase.
func DetectEncryption(format Format, data []byte) Encryption {
	switch format {
	case FormatSSH1:
		return DecodeSSH1(data)
	case FormatPEM:
		return DecodePEM(data)
	case FormatOpenSSHv1:
		return DecodeOpenSSHv1(data)
	default:
		return EncryptionUnknown
	}
}
