/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package content

import (
	"strings"

	"github.com/kentakayama/bt-verify/internal/util"
)

// eventHandlerAttributes are attribute names that run inline script.
var eventHandlerAttributes = util.NewSet(strings.Fields(`
onabort onactivate onattribute onafterprint onafterscriptexecute
onafterupdate onanimationcancel onanimationend onanimationiteration
onanimationstart onappinstalled onariarequest onautocomplete
onautocompleteerror onauxclick onbeforeactivate onbeforecopy onbeforecut
onbeforedeactivate onbeforeeditfocus onbeforeinstallprompt onbeforepaste
onbeforeprint onbeforescriptexecute onbeforeunload onbeforeupdate
onbeforexrselect onbegin onblur onbounce oncancel oncanplay
oncanplaythrough oncellchange onchange onclick onclose oncommand
oncompassneedscalibration oncontextmenu oncontrolselect oncopy oncuechange
oncut ondataavailable ondatasetchanged ondatasetcomplete ondblclick
ondeactivate ondevicelight ondevicemotion ondeviceorientation
ondeviceorientationabsolute ondeviceproximity ondrag ondragdrop ondragend
ondragenter ondragleave ondragover ondragstart ondrop ondurationchange
onemptied onend onended onerror onerrorupdate onexit onfilterchange
onfinish onfocus onfocusin onfocusout onformchange onformdata onforminput
onfullscreenchange onfullscreenerror ongotpointercapture onhashchange
onhelp oninput oninvalid onkeydown onkeypress onkeyup onlanguagechange
onlayoutcomplete onload onloadeddata onloadedmetadata onloadend onloadstart
onlosecapture onlostpointercapture onmediacomplete onmediaerror onmessage
onmessageerror onmousedown onmouseenter onmouseleave onmousemove onmouseout
onmouseover onmouseup onmousewheel onmove onmoveend onmovestart
onmozfullscreenchange onmozfullscreenerror onmozpointerlockchange
onmozpointerlockerror onmscontentzoom onmsfullscreenchange
onmsfullscreenerror onmsgesturechange onmsgesturedoubletap onmsgestureend
onmsgesturehold onmsgesturestart onmsgesturetap onmsgotpointercapture
onmsinertiastart onmslostpointercapture onmsmanipulationstatechanged
onmspointercancel onmspointerdown onmspointerenter onmspointerleave
onmspointermove onmspointerout onmspointerover onmspointerup
onmssitemodejumplistitemremoved onmsthumbnailclick onoffline ononline
onoutofsync onpage onpagehide onpageshow onpaste onpause onplay onplaying
onpointercancel onpointerdown onpointerenter onpointerleave
onpointerlockchange onpointerlockerror onpointermove onpointerout
onpointerover onpointerrawupdate onpointerup onpopstate onprogress
onpropertychange onratechange onreadystatechange onreceived
onrejectionhandled onrepeat onreset onresize onresizeend onresizestart
onresume onreverse onrowdelete onrowenter onrowexit onrowinserted
onrowsdelete onrowsenter onrowsexit onrowsinserted onscroll onsearch
onsecuritypolicyviolation onseek onseeked onseeking onselect
onselectionchange onselectstart onslotchange onstalled onstorage
onstoragecommit onstart onstop onshow onsyncrestored onsubmit onsuspend
onsynchrestored ontimeerror ontimeupdate ontoggle ontouchend ontouchmove
ontouchstart ontrackchange ontransitioncancel ontransitionend
ontransitionrun ontransitionstart onunhandledrejection onunload onurlflip
onuserproximity onvolumechange onwaiting onwebkitanimationend
onwebkitanimationiteration onwebkitanimationstart onwebkitfullscreenchange
onwebkitfullscreenerror onwebkittransitionend onwheel
`)...)
