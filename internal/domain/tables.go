package domain

var Tables = []interface{}{
	// System
	&SysConfig{},
	// Workshop
	&Workshop{},
	&ServiceRecord{},
	// WhatsApp
	&WaSession{},
}
