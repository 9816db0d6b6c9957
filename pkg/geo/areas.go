package geo

// Areas maps administrative regions (county, then district) to a
// representative coordinate, used by the manual location selector when
// geolocation is denied or unavailable.
var Areas = map[string]map[string]Point{
	"臺北市": {
		"中正區": {Lat: 25.0324049, Lng: 121.5198839},
		"大同區": {Lat: 25.0634243, Lng: 121.5130417},
		"中山區": {Lat: 25.0696992, Lng: 121.5381597},
		"松山區": {Lat: 25.059991, Lng: 121.5575876},
		"大安區": {Lat: 25.0267701, Lng: 121.5434446},
		"萬華區": {Lat: 25.0285899, Lng: 121.4979858},
		"信義區": {Lat: 25.0306208, Lng: 121.5716697},
		"士林區": {Lat: 25.125467, Lng: 121.5508473},
		"北投區": {Lat: 25.1480682, Lng: 121.5177992},
		"內湖區": {Lat: 25.0837062, Lng: 121.5923828},
		"南港區": {Lat: 25.0360093, Lng: 121.6097573},
		"文山區": {Lat: 24.9885793, Lng: 121.5736082},
	},
	"基隆市": {
		"仁愛區": {Lat: 25.1194542, Lng: 121.7434205},
		"信義區": {Lat: 25.1257658, Lng: 121.772646},
		"中正區": {Lat: 25.1436575, Lng: 121.7783549},
		"中山區": {Lat: 25.1498637, Lng: 121.7308913},
		"安樂區": {Lat: 25.1413952, Lng: 121.7078325},
		"暖暖區": {Lat: 25.08097, Lng: 121.7447344},
		"七堵區": {Lat: 25.1096203, Lng: 121.683628},
	},
	"新北市": {
		"萬里區": {Lat: 25.1757246, Lng: 121.6439307},
		"金山區": {Lat: 25.2171459, Lng: 121.6052639},
		"板橋區": {Lat: 25.0118645, Lng: 121.4579675},
		"汐止區": {Lat: 25.0733132, Lng: 121.6546992},
		"深坑區": {Lat: 24.9976751, Lng: 121.6200624},
		"石碇區": {Lat: 24.9471411, Lng: 121.6472277},
		"瑞芳區": {Lat: 25.0981293, Lng: 121.8232018},
		"平溪區": {Lat: 25.0260707, Lng: 121.7578817},
		"雙溪區": {Lat: 24.9969839, Lng: 121.8329822},
		"貢寮區": {Lat: 25.0248564, Lng: 121.9182466},
		"新店區": {Lat: 24.9303901, Lng: 121.5316565},
		"坪林區": {Lat: 24.9109707, Lng: 121.724223},
		"烏來區": {Lat: 24.788243, Lng: 121.5414806},
		"永和區": {Lat: 25.008102, Lng: 121.516745},
		"中和區": {Lat: 24.9908804, Lng: 121.4936744},
		"土城區": {Lat: 24.964251, Lng: 121.445737},
		"三峽區": {Lat: 24.8820977, Lng: 121.4163094},
		"樹林區": {Lat: 24.9797061, Lng: 121.401034},
		"鶯歌區": {Lat: 24.9566258, Lng: 121.3466269},
		"三重區": {Lat: 25.0628165, Lng: 121.4870977},
		"新莊區": {Lat: 25.0358303, Lng: 121.4367535},
		"泰山區": {Lat: 25.0554977, Lng: 121.4162785},
		"林口區": {Lat: 25.1000868, Lng: 121.3527235},
		"蘆洲區": {Lat: 25.0892717, Lng: 121.4712461},
		"五股區": {Lat: 25.0961475, Lng: 121.4332139},
		"八里區": {Lat: 25.1381276, Lng: 121.4138359},
		"淡水區": {Lat: 25.1890764, Lng: 121.463904},
		"三芝區": {Lat: 25.2315989, Lng: 121.515558},
		"石門區": {Lat: 25.2651808, Lng: 121.5692761},
	},
	"桃園市": {
		"中壢區": {Lat: 24.979938, Lng: 121.2147243},
		"平鎮區": {Lat: 24.9211792, Lng: 121.2140051},
		"龍潭區": {Lat: 24.8506495, Lng: 121.2117877},
		"楊梅區": {Lat: 24.9182099, Lng: 121.1291697},
		"新屋區": {Lat: 24.9728035, Lng: 121.067758},
		"觀音區": {Lat: 25.0267161, Lng: 121.1155021},
		"桃園區": {Lat: 25.0004002, Lng: 121.2996612},
		"龜山區": {Lat: 25.0241747, Lng: 121.3569265},
		"八德區": {Lat: 24.949689, Lng: 121.2913102},
		"大溪區": {Lat: 24.8679703, Lng: 121.296342},
		"復興區": {Lat: 24.7294988, Lng: 121.3754588},
		"大園區": {Lat: 25.0638471, Lng: 121.21177},
		"蘆竹區": {Lat: 25.0607334, Lng: 121.2831266},
	},
	"新竹市": {
		"北區":  {Lat: 24.8226954, Lng: 120.9491233},
		"東區":  {Lat: 24.7902817, Lng: 120.9927505},
		"香山區": {Lat: 24.7710434, Lng: 120.9236727},
	},
	"宜蘭縣": {
		"宜蘭市": {Lat: 24.7502118, Lng: 121.7569358},
		"頭城鎮": {Lat: 24.9007588, Lng: 121.845797},
		"礁溪鄉": {Lat: 24.8114419, Lng: 121.7346606},
		"壯圍鄉": {Lat: 24.7518304, Lng: 121.8017622},
		"員山鄉": {Lat: 24.7419924, Lng: 121.6612282},
		"羅東鎮": {Lat: 24.6788482, Lng: 121.7701782},
		"三星鄉": {Lat: 24.6677197, Lng: 121.6642714},
		"大同鄉": {Lat: 24.5515208, Lng: 121.5040369},
		"五結鄉": {Lat: 24.6888734, Lng: 121.8058342},
		"冬山鄉": {Lat: 24.6421499, Lng: 121.760255},
		"蘇澳鎮": {Lat: 24.5546706, Lng: 121.8346892},
		"南澳鄉": {Lat: 24.4486406, Lng: 121.6560593},
	},
}
